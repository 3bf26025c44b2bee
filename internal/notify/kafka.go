package notify

import (
	"context"
	"github.com/ariefcatur/go-marketplace-core/internal/events"
	"github.com/ariefcatur/go-marketplace-core/internal/inventory"
	"github.com/ariefcatur/go-marketplace-core/internal/kafka"
	"github.com/ariefcatur/go-marketplace-core/internal/sellermode"
	kgo "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher dipenuhi *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kgo.Header) error
}

// Kafka menerbitkan notifikasi domain sebagai envelope v1. Semua method
// fire-and-forget: error hanya di-log, mutasi yang sudah commit tidak disentuh.
type Kafka struct {
	LowStockProducer   Publisher
	ModeChangeProducer Publisher
	Producer           string // nama service di envelope
	Log                *zap.Logger
}

var (
	_ inventory.Notifier        = (*Kafka)(nil)
	_ sellermode.EventPublisher = (*Kafka)(nil)
)

func (k *Kafka) LowStock(ctx context.Context, a inventory.LowStockAlert) {
	k.publish(ctx, k.LowStockProducer, events.EventProductLowStock, a.ProductID, events.ProductLowStockPayload{
		ProductID: a.ProductID,
		SellerID:  a.SellerID,
		Remaining: a.Remaining,
		Threshold: a.Threshold,
	})
}

func (k *Kafka) ModeChanged(ctx context.Context, c sellermode.ModeChange) {
	k.publish(ctx, k.ModeChangeProducer, events.EventSellerModeChanged, c.SellerID, events.SellerModeChangedPayload{
		SellerID:            c.SellerID,
		From:                string(c.From),
		To:                  string(c.To),
		DeactivatedListings: c.DeactivatedListings,
	})
}

func (k *Kafka) publish(ctx context.Context, p Publisher, eventType, key string, payload any) {
	if p == nil {
		return
	}
	log := k.Log.With(zap.String("event_type", eventType), zap.String("key", key))

	env, err := events.New(eventType, k.Producer, key, payload)
	if err != nil {
		log.Error("build event", zap.Error(err))
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	b, headers, err := kafka.Encode(env)
	if err != nil {
		log.Error("encode event", zap.Error(err))
		return
	}
	if err := p.Publish(events.PartitionKey(key), b, headers...); err != nil {
		log.Warn("publish event dropped", zap.String("event_id", env.EventID), zap.Error(err))
	}
}
