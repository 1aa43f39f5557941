package event

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/types"
)

// Handler 事件处理器
type Handler func(types.Event)

// subscriptionCounter 用于生成唯一订阅 ID，替代 time.Now().UnixNano() 避免并发碰撞
var subscriptionCounter int64

// Bus 定义编排事件总线接口。订阅者之间彼此隔离：单个 handler 的
// panic 或阻塞不会影响其他订阅者收到事件。
type Bus interface {
	Publish(event types.Event)
	Subscribe(eventType types.EventType, handler Handler) string
	SubscribeAll(handler Handler) string
	SubscribeChan(buffer int) (string, <-chan types.Event)
	Unsubscribe(subscriptionID string)
	Dropped() int64
	Close()
}

// subscriberAll 是 SubscribeAll 在 handlers 表中的特殊键。
const subscriberAll types.EventType = "*"

// simpleBus 基于缓冲通道 + 分发 goroutine 的事件总线实现
type simpleBus struct {
	mu       sync.RWMutex
	handlers map[types.EventType]map[string]Handler
	channels map[string]chan types.Event
	events   chan types.Event
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
	logger   *zap.Logger
}

// NewBus 创建新的事件总线
func NewBus(logger *zap.Logger) Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &simpleBus{
		handlers: make(map[types.EventType]map[string]Handler),
		channels: make(map[string]chan types.Event),
		events:   make(chan types.Event, 256),
		done:     make(chan struct{}),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
	go bus.processEvents()
	return bus
}

// Publish 发布事件。非阻塞：通道满时丢弃并计数，绝不阻塞编排主路径。
func (b *simpleBus) Publish(event types.Event) {
	select {
	case b.events <- event:
	case <-b.done:
	default:
		b.dropped.Add(1)
	}
}

// Subscribe 订阅指定类型的事件
func (b *simpleBus) Subscribe(eventType types.EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// SubscribeAll 订阅全部事件类型
func (b *simpleBus) SubscribeAll(handler Handler) string {
	return b.Subscribe(subscriberAll, handler)
}

// SubscribeChan 以有序通道方式订阅全部事件。通道按分发顺序接收事件；
// 订阅者消费过慢时事件被丢弃（计入 Dropped），不会阻塞分发循环。
func (b *simpleBus) SubscribeChan(buffer int) (string, <-chan types.Event) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("chan-%d", atomic.AddInt64(&subscriptionCounter, 1))
	b.channels[id] = ch
	return id, ch
}

// Unsubscribe 取消订阅
func (b *simpleBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.channels[subscriptionID]; ok {
		delete(b.channels, subscriptionID)
		close(ch)
		return
	}

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// Dropped 返回因背压被丢弃的事件数量
func (b *simpleBus) Dropped() int64 {
	return b.dropped.Load()
}

// processEvents 分发事件
func (b *simpleBus) processEvents() {
	for {
		select {
		case event := <-b.events:
			b.dispatch(event)
		case <-b.done:
			return
		}
	}
}

func (b *simpleBus) dispatch(event types.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.handlers[subscriberAll]))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range b.handlers[subscriberAll] {
		handlers = append(handlers, h)
	}
	channels := make([]chan types.Event, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("event_type", string(event.Type)),
						zap.Any("recover", r))
				}
			}()
			h(event)
		}()
	}

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close 停止事件总线并关闭所有通道订阅。幂等。
func (b *simpleBus) Close() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		for id, ch := range b.channels {
			delete(b.channels, id)
			close(ch)
		}
	})
}
