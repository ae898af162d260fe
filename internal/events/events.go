// Package events fans committed sales and stock movements out to whoever is
// listening (websocket clients, the catalog cache). Nothing is published until
// the unit of work that produced it has committed.
package events

import (
	"go-pos-ws/internal/model"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TopicSaleCompleted  = "sale.completed"
	TopicStockChanged   = "stock.changed"
	TopicCatalogChanged = "catalog.changed"
)

type SaleCompleted struct {
	Transaction  *model.Transaction
	OperatorName string
}

type StockChanged struct {
	ProductID    uuid.UUID
	ProductName  string
	Delta        int
	Stock        int
	Note         string
	OperatorName string
}

type CatalogChanged struct {
	ProductID uuid.UUID
	Action    string
}

type Bus struct {
	bus EventBus.Bus
}

func New() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) PublishSaleCompleted(e SaleCompleted) { b.bus.Publish(TopicSaleCompleted, e) }
func (b *Bus) PublishStockChanged(e StockChanged)   { b.bus.Publish(TopicStockChanged, e) }
func (b *Bus) PublishCatalogChanged(e CatalogChanged) {
	b.bus.Publish(TopicCatalogChanged, e)
}

// Handlers run asynchronously, one publish at a time per handler.

func (b *Bus) OnSaleCompleted(fn func(SaleCompleted)) error {
	return b.subscribe(TopicSaleCompleted, fn)
}

func (b *Bus) OnStockChanged(fn func(StockChanged)) error {
	return b.subscribe(TopicStockChanged, fn)
}

func (b *Bus) OnCatalogChanged(fn func(CatalogChanged)) error {
	return b.subscribe(TopicCatalogChanged, fn)
}

func (b *Bus) subscribe(topic string, fn interface{}) error {
	if err := b.bus.SubscribeAsync(topic, fn, true); err != nil {
		zap.L().Error("event subscribe failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}

// WaitAsync blocks until every in-flight handler has returned.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
