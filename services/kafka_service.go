package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"forumchat/config"
)

// 论坛事件类型
const (
	EventMessageCreated    = "message_created"
	EventMessageDeleted    = "message_deleted"
	EventMembershipChanged = "membership_changed"
	EventForumDeleted      = "forum_deleted"
)

// ForumEvent 论坛事件，消息体不随事件传输，客户端收到提示后自行拉取
type ForumEvent struct {
	Type      string    `json:"type"`
	ForumID   uint      `json:"forum_id"`
	MessageID uint      `json:"message_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventHandler 事件处理函数类型
type EventHandler func(event ForumEvent)

// KafkaService 论坛事件的发布和消费
// 用于多实例部署时的缓存失效和WebSocket提示转发
type KafkaService struct {
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	topic    string
	ctx      context.Context
	cancel   context.CancelFunc
	metrics  *KafkaMetrics
}

// KafkaMetrics 收集Kafka相关指标
type KafkaMetrics struct {
	eventsPublished int64
	eventsConsumed  int64
	errors          int64
	mu              sync.RWMutex
}

// NewKafkaService 创建Kafka服务
func NewKafkaService() (*KafkaService, error) {
	// 创建生产者配置
	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForLocal
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Version = sarama.V2_5_0_0

	producer, err := sarama.NewSyncProducer(config.AppConfig.KafkaBootstrapServers, producerConfig)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %v", err)
	}

	// 创建消费者配置
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	consumerConfig.Version = sarama.V2_5_0_0

	consumer, err := sarama.NewConsumerGroup(
		config.AppConfig.KafkaBootstrapServers,
		config.AppConfig.KafkaConsumerGroup,
		consumerConfig,
	)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("创建Kafka消费者组失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &KafkaService{
		producer: producer,
		consumer: consumer,
		topic:    config.AppConfig.KafkaEventTopic,
		ctx:      ctx,
		cancel:   cancel,
		metrics:  &KafkaMetrics{},
	}, nil
}

// PublishEvent 发布论坛事件
func (s *KafkaService) PublishEvent(event ForumEvent) error {
	event.CreatedAt = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		// 按论坛分区，保证同一论坛的事件有序
		Key:   sarama.StringEncoder(fmt.Sprintf("forum-%d", event.ForumID)),
		Value: sarama.ByteEncoder(payload),
	}

	_, _, err = s.producer.SendMessage(msg)
	if err != nil {
		s.metrics.addError()
		return fmt.Errorf("发布事件失败: %v", err)
	}

	s.metrics.addPublished()
	return nil
}

// StartConsuming 启动事件消费循环
func (s *KafkaService) StartConsuming(handler EventHandler) {
	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			// Consume会在重平衡后返回，需要循环调用
			err := s.consumer.Consume(s.ctx, []string{s.topic}, &eventConsumerHandler{
				handler: handler,
				metrics: s.metrics,
			})
			if err != nil {
				log.Printf("Kafka消费失败: %v", err)
				s.metrics.addError()
				time.Sleep(time.Second)
			}
		}
	}()

	// 记录消费错误
	go func() {
		for err := range s.consumer.Errors() {
			log.Printf("Kafka消费者错误: %v", err)
			s.metrics.addError()
		}
	}()
}

// Close 关闭Kafka连接
func (s *KafkaService) Close() {
	s.cancel()
	if s.producer != nil {
		s.producer.Close()
	}
	if s.consumer != nil {
		s.consumer.Close()
	}
}

// GetMetrics 获取指标快照
func (s *KafkaService) GetMetrics() (published, consumed, errCount int64) {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return s.metrics.eventsPublished, s.metrics.eventsConsumed, s.metrics.errors
}

func (m *KafkaMetrics) addPublished() {
	m.mu.Lock()
	m.eventsPublished++
	m.mu.Unlock()
}

func (m *KafkaMetrics) addConsumed() {
	m.mu.Lock()
	m.eventsConsumed++
	m.mu.Unlock()
}

func (m *KafkaMetrics) addError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// eventConsumerHandler 实现sarama.ConsumerGroupHandler
type eventConsumerHandler struct {
	handler EventHandler
	metrics *KafkaMetrics
}

func (h *eventConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *eventConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *eventConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var event ForumEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("解析论坛事件失败: %v", err)
			session.MarkMessage(msg, "")
			continue
		}

		h.handler(event)
		h.metrics.addConsumed()
		session.MarkMessage(msg, "")
	}
	return nil
}
