package client

import (
	"context"
	"testing"
	"time"

	"forumchat/models"
)

// pollUpdate 测试用更新记录
type pollUpdate struct {
	forumID        uint
	messages       []models.MessageResponse
	scrollToBottom bool
}

// waitUpdate 等待下一次更新，超时则终止测试
func waitUpdate(t *testing.T, updates <-chan pollUpdate) pollUpdate {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("等待轮询更新超时")
		return pollUpdate{}
	}
}

func TestPollerImmediateFetch(t *testing.T) {
	updates := make(chan pollUpdate, 16)

	fetch := func(ctx context.Context, forumID uint) ([]models.MessageResponse, error) {
		return []models.MessageResponse{{ID: 1, ForumID: forumID, Content: "你好"}}, nil
	}
	p := NewPoller(fetch, func(forumID uint, messages []models.MessageResponse, scrollToBottom bool) {
		updates <- pollUpdate{forumID, messages, scrollToBottom}
	})
	p.interval = 10 * time.Millisecond

	p.Start(7)
	defer p.Stop()

	// 启动后立即拉取一次，不等待第一个周期
	u := waitUpdate(t, updates)
	if u.forumID != 7 || len(u.messages) != 1 {
		t.Errorf("首次更新 = %+v", u)
	}

	// 首批消息提示滚动到底部
	if !u.scrollToBottom {
		t.Error("首批消息应当提示滚动到底部")
	}
}

func TestPollerScrollHintOnlyOnNewMessages(t *testing.T) {
	updates := make(chan pollUpdate, 16)

	var calls int
	fetch := func(ctx context.Context, forumID uint) ([]models.MessageResponse, error) {
		calls++
		batch := []models.MessageResponse{{ID: 1}, {ID: 2}}
		// 第三次拉取时出现新消息
		if calls >= 3 {
			batch = append(batch, models.MessageResponse{ID: 3})
		}
		return batch, nil
	}
	p := NewPoller(fetch, func(forumID uint, messages []models.MessageResponse, scrollToBottom bool) {
		updates <- pollUpdate{forumID, messages, scrollToBottom}
	})
	p.interval = 10 * time.Millisecond

	p.Start(1)
	defer p.Stop()

	first := waitUpdate(t, updates)
	if !first.scrollToBottom {
		t.Error("首批消息应当提示滚动")
	}

	// 消息没有变化时不提示滚动
	second := waitUpdate(t, updates)
	if second.scrollToBottom {
		t.Error("消息未变化时不应当提示滚动")
	}

	// 出现新消息后再次提示滚动
	third := waitUpdate(t, updates)
	if !third.scrollToBottom {
		t.Error("出现新消息时应当提示滚动")
	}
	if len(third.messages) != 3 {
		t.Errorf("第三次更新消息数 = %d, 期望 3", len(third.messages))
	}
}

func TestPollerDiscardsStaleResponse(t *testing.T) {
	updates := make(chan pollUpdate, 16)

	p := NewPoller(nil, func(forumID uint, messages []models.MessageResponse, scrollToBottom bool) {
		updates <- pollUpdate{forumID, messages, scrollToBottom}
	})

	p.mu.Lock()
	p.forumID = 2
	p.generation = 5
	p.mu.Unlock()

	// 旧论坛的迟到响应被丢弃
	p.apply(1, 4, []models.MessageResponse{{ID: 100}})
	select {
	case u := <-updates:
		t.Errorf("过期响应不应当触发更新: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	// 当前论坛的响应正常应用
	p.apply(2, 5, []models.MessageResponse{{ID: 100}})
	u := waitUpdate(t, updates)
	if u.forumID != 2 || !u.scrollToBottom {
		t.Errorf("当前论坛的响应 = %+v", u)
	}
}

func TestPollerSwitchForum(t *testing.T) {
	updates := make(chan pollUpdate, 16)

	fetch := func(ctx context.Context, forumID uint) ([]models.MessageResponse, error) {
		return []models.MessageResponse{{ID: uint(forumID * 10), ForumID: forumID}}, nil
	}
	p := NewPoller(fetch, func(forumID uint, messages []models.MessageResponse, scrollToBottom bool) {
		updates <- pollUpdate{forumID, messages, scrollToBottom}
	})
	p.interval = 10 * time.Millisecond

	p.Start(1)
	waitUpdate(t, updates)

	// 切换论坛后只收到新论坛的更新
	p.Start(2)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.forumID == 2 {
				if p.Polling() != 2 {
					t.Errorf("Polling() = %d, 期望 2", p.Polling())
				}
				return
			}
			// 切换前已在途的旧更新允许出现，但切换完成后不再有
		case <-deadline:
			t.Fatal("切换论坛后未收到新论坛的更新")
		}
	}
}

func TestPollerStop(t *testing.T) {
	updates := make(chan pollUpdate, 16)

	fetch := func(ctx context.Context, forumID uint) ([]models.MessageResponse, error) {
		return []models.MessageResponse{{ID: 1}}, nil
	}
	p := NewPoller(fetch, func(forumID uint, messages []models.MessageResponse, scrollToBottom bool) {
		updates <- pollUpdate{forumID, messages, scrollToBottom}
	})
	p.interval = 10 * time.Millisecond

	p.Start(1)
	waitUpdate(t, updates)

	p.Stop()
	if p.Polling() != 0 {
		t.Errorf("Polling() = %d, 停止后应当为0", p.Polling())
	}

	// 排空停止前已在途的更新，之后不应再有新更新
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case <-updates:
			continue
		default:
		}
		break
	}
	select {
	case u := <-updates:
		t.Errorf("停止后不应当再有更新: %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}
