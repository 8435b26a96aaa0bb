package client

import (
	"context"
	"log"
	"sync"
	"time"

	"forumchat/models"
)

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 3 * time.Second

// FetchFunc 拉取论坛消息的函数类型
type FetchFunc func(ctx context.Context, forumID uint) ([]models.MessageResponse, error)

// UpdateFunc 消息列表更新回调
// scrollToBottom 为true时表示有新消息到达，界面应滚动到底部
type UpdateFunc func(forumID uint, messages []models.MessageResponse, scrollToBottom bool)

// Poller 论坛消息轮询器
// 同一时刻只轮询一个论坛：打开论坛时启动，切换论坛时重启，离开时停止。
// 迟到的旧论坛响应会被丢弃，不会污染当前论坛的消息列表。
type Poller struct {
	fetch    FetchFunc
	onUpdate UpdateFunc
	interval time.Duration

	mu         sync.Mutex
	forumID    uint // 当前轮询的论坛，0表示空闲
	generation uint64
	cancel     context.CancelFunc
	lastID     uint // 已见过的最大消息ID，用于判断是否需要滚动
}

// NewPoller 创建轮询器
func NewPoller(fetch FetchFunc, onUpdate UpdateFunc) *Poller {
	return &Poller{
		fetch:    fetch,
		onUpdate: onUpdate,
		interval: DefaultPollInterval,
	}
}

// Start 开始轮询指定论坛，立即拉取一次后按间隔重复
// 如果已经在轮询其他论坛，先停止旧的轮询
func (p *Poller) Start(forumID uint) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.forumID = forumID
	p.generation++
	p.lastID = 0
	gen := p.generation
	p.mu.Unlock()

	go p.run(ctx, forumID, gen)
}

// Stop 停止轮询，回到空闲状态
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.forumID = 0
	p.generation++
}

// Polling 返回当前轮询的论坛ID，0表示空闲
func (p *Poller) Polling() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forumID
}

// run 轮询循环，启动时立即拉取一次
func (p *Poller) run(ctx context.Context, forumID uint, gen uint64) {
	p.pollOnce(ctx, forumID, gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, forumID, gen)
		}
	}
}

// pollOnce 拉取一次消息并应用结果
// 拉取失败只记录日志，下个周期重试
func (p *Poller) pollOnce(ctx context.Context, forumID uint, gen uint64) {
	messages, err := p.fetch(ctx, forumID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("轮询论坛%d失败: %v", forumID, err)
		}
		return
	}

	p.apply(forumID, gen, messages)
}

// apply 应用拉取结果，丢弃过期响应
func (p *Poller) apply(forumID uint, gen uint64, messages []models.MessageResponse) {
	p.mu.Lock()

	// 响应返回时已经切换/停止了轮询，直接丢弃
	if gen != p.generation || p.forumID != forumID {
		p.mu.Unlock()
		return
	}

	// 有比上次更新的消息时提示滚动到底部
	var maxID uint
	if len(messages) > 0 {
		maxID = messages[len(messages)-1].ID
	}
	scrollToBottom := maxID > p.lastID
	if maxID > p.lastID {
		p.lastID = maxID
	}
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(forumID, messages, scrollToBottom)
	}
}
