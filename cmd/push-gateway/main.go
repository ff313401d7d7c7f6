// cmd/push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/infrastructure/adapter"
)

const (
	serviceName   = "push-gateway"
	consumerGroup = "push-gateway-group"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 后台前端和网关不同源，跨域校验交给网关前面的反向代理
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub 维护在线的后台客户端连接，按客户 ID 路由通知。
type Hub struct {
	lock    sync.RWMutex
	clients map[uint][]*Client
}

func newHub() *Hub {
	return &Hub{clients: make(map[uint][]*Client)}
}

func (h *Hub) register(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c.customerID] = append(h.clients[c.customerID], c)
}

func (h *Hub) unregister(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	conns := h.clients[c.customerID]
	for i, conn := range conns {
		if conn == c {
			h.clients[c.customerID] = append(conns[:i], conns[i+1:]...)
			close(c.send)
			break
		}
	}
	if len(h.clients[c.customerID]) == 0 {
		delete(h.clients, c.customerID)
	}
}

// dispatch 把消息推给客户的所有在线连接。customerID 为 0 时广播给全员。
func (h *Hub) dispatch(customerID uint, payload []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	delivered := 0
	deliver := func(conns []*Client) {
		for _, c := range conns {
			select {
			case c.send <- payload:
				delivered++
			default:
				// 发送缓冲满说明连接已经写不动了，丢弃而不是阻塞整个分发
			}
		}
	}
	if customerID == 0 {
		for _, conns := range h.clients {
			deliver(conns)
		}
		return delivered
	}
	deliver(h.clients[customerID])
	return delivered
}

// Client 是一条 WebSocket 连接。
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	customerID uint
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只消费心跳，客户端不向网关发业务消息。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseUint(r.URL.Query().Get("customerId"), 10, 64)
	if err != nil {
		http.Error(w, "customerId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		customerID: uint(customerID),
	}
	hub.register(client)

	go client.writePump()
	go client.readPump()
}

// consumeNotifications 消费通知主题，把订单事件推给在线客户端。
func consumeNotifications(ctx context.Context, reader *kafka.Reader, hub *Hub, tracer trace.Tracer) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.L.Error().Err(err).Msg("failed to read notification message")
			time.Sleep(5 * time.Second)
			continue
		}

		msgCtx := mq.ExtractContext(ctx, msg)
		_, span := tracer.Start(msgCtx, "push.DeliverNotification",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		var event adapter.NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("malformed notification event, skipping")
			span.RecordError(err)
			span.End()
			continue
		}

		delivered := hub.dispatch(event.CustomerID, msg.Value)
		span.SetAttributes(
			attribute.Int("push.customer_id", int(event.CustomerID)),
			attribute.String("push.kind", event.Kind),
			attribute.Int("push.delivered", delivered),
		)
		span.End()
	}
}

func main() {
	cfg := bootstrap.Init(serviceName)

	hub := newHub()
	reader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, consumerGroup)

	ctx, stop := context.WithCancel(context.Background())
	go consumeNotifications(ctx, reader, hub, otel.Tracer(serviceName))

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, w, r)
			})
		},
		OnShutdown: func(shutdownCtx context.Context) {
			stop()
			if err := reader.Close(); err != nil {
				logger.L.Error().Err(err).Msg("error closing kafka reader")
			}
		},
	})
}
