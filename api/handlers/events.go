package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 📡 实时事件流 Handler（WebSocket）
// =============================================================================

// EventsHandler 将事件总线以 WebSocket 推送给客户端
type EventsHandler struct {
	bus    event.Bus
	logger *zap.Logger

	// originPatterns 允许的跨域来源；空表示仅同源
	originPatterns []string
	// buffer 每个连接的订阅通道容量，消费过慢时事件被丢弃
	buffer int
	// writeTimeout 单条事件的写超时
	writeTimeout time.Duration
}

// NewEventsHandler 创建事件流处理器
func NewEventsHandler(bus event.Bus, originPatterns []string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		bus:            bus,
		logger:         logger.With(zap.String("component", "events_handler")),
		originPatterns: originPatterns,
		buffer:         256,
		writeTimeout:   5 * time.Second,
	}
}

// HandleEvents 升级为 WebSocket 并按分发顺序推送全部编排事件
// @Summary 事件流
// @Description 订阅工作流、代理响应与健康告警的实时事件流
// @Tags 事件
// @Success 101 {string} string "协议切换"
// @Security ApiKeyAuth
// @Router /api/v1/events/ws [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出 HTTP 错误响应
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "event stream aborted")

	subID, events := h.bus.SubscribeChan(h.buffer)
	defer h.bus.Unsubscribe(subID)

	// CloseRead 丢弃客户端消息；客户端断开时返回的 ctx 被取消
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("event stream opened",
		zap.String("subscription_id", subID),
		zap.String("remote", r.RemoteAddr),
	)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "event bus closed")
				return
			}
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("event stream write failed",
					zap.String("subscription_id", subID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

// writeEvent 序列化并发送一条事件。序列化失败只跳过该条。
func (h *EventsHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("event payload not serializable",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
