package ws

import (
	"context"
	"fmt"
	"sync"

	"go-pos-ws/internal/events"

	"github.com/gofiber/contrib/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const broadcastBuffer = 64

type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, broadcastBuffer),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			n := len(h.Clients)
			h.mutex.Unlock()
			zap.L().Debug("ws client connected", zap.Int("clients", n))

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish encodes payload and queues it for every connected client. A full
// queue drops the message rather than stalling the publisher.
func (h *Hub) Publish(payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("ws payload encode failed", zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		zap.L().Warn("ws broadcast queue full, message dropped")
	}
}

// Attach forwards committed sales and stock movements to the dashboard clients.
func (h *Hub) Attach(bus *events.Bus) error {
	if err := bus.OnSaleCompleted(func(e events.SaleCompleted) { h.Publish(saleMessage(e)) }); err != nil {
		return err
	}
	return bus.OnStockChanged(func(e events.StockChanged) { h.Publish(stockMessage(e)) })
}

func saleMessage(e events.SaleCompleted) map[string]interface{} {
	t := e.Transaction
	return map[string]interface{}{
		"type":   "sale",
		"action": "sale_completed",
		"transaction": map[string]interface{}{
			"id":             t.ID,
			"number":         t.Number,
			"payment_method": t.PaymentMethod,
			"total":          t.Total,
			"items":          len(t.Items),
		},
		"user": map[string]interface{}{
			"id":   t.OperatorID,
			"name": e.OperatorName,
		},
		"message": fmt.Sprintf("%s completed sale #%d (%s)", e.OperatorName, t.Number, t.Total.StringFixed(2)),
	}
}

func stockMessage(e events.StockChanged) map[string]interface{} {
	return map[string]interface{}{
		"type":   "stock_update",
		"action": "stock_changed",
		"product": map[string]interface{}{
			"id":    e.ProductID,
			"name":  e.ProductName,
			"stock": e.Stock,
			"delta": e.Delta,
		},
		"user": map[string]interface{}{
			"name": e.OperatorName,
		},
		"message": fmt.Sprintf("%s: %s (%+d, now %d)", e.OperatorName, e.Note, e.Delta, e.Stock),
	}
}
