package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TradeMessage is what websocket clients receive for every closed trade.
type TradeMessage struct {
	Type  string        `json:"type"`
	Trade *domain.Trade `json:"trade"`
}

// Hub streams closed trades to connected websocket clients. It is a domain.TradeSink.
type Hub struct {
	clients map[*websocket.Conn]bool
	lock    sync.Mutex
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeWS upgrades the request and keeps the client registered until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS upgrade error", zap.Error(err))
		return
	}

	h.lock.Lock()
	h.clients[conn] = true
	h.lock.Unlock()
	h.logger.Debug("WS client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.readPump(conn)
}

// readPump drains client frames so close messages are noticed.
func (h *Hub) readPump(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) Broadcast(msg []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) Publish(_ context.Context, trades []*domain.Trade) error {
	for _, t := range trades {
		msg, err := json.Marshal(TradeMessage{Type: "trade_closed", Trade: t})
		if err != nil {
			return fmt.Errorf("marshal trade %s: %w", t.OrderID, err)
		}
		h.Broadcast(msg)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
