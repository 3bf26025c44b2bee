package jobs

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/events"
	"github.com/ariefcatur/go-marketplace-core/internal/kafka"
	"github.com/ariefcatur/go-marketplace-core/internal/redisx"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"github.com/redis/go-redis/v9"
	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const carrierConsumer = "carrier"

type CarrierStatusHandler interface {
	HandleCarrierStatus(ctx context.Context, u settlement.CarrierUpdate) error
}

// CarrierConsumer memproses topic shipment.status. Dedup per event_id di Redis;
// key di-set setelah sukses, jadi gagal di tengah tetap di-retry.
type CarrierConsumer struct {
	Engine CarrierStatusHandler
	Redis  *redis.Client
	Log    *zap.Logger
}

func (c *CarrierConsumer) Handle(ctx context.Context, m kgo.Message) error {
	env, err := kafka.DecodeEnvelope(m.Value)
	if err != nil {
		c.Log.Error("drop undecodable message", zap.ByteString("key", m.Key), zap.Error(err))
		return nil
	}
	log := c.Log.With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))
	if env.EventType != events.EventShipmentStatusChanged {
		log.Debug("skip foreign event")
		return nil
	}

	dedupKey := fmt.Sprintf(redisx.KeyDedup, carrierConsumer, env.EventID)
	seen, err := redisx.Exists(ctx, c.Redis, dedupKey)
	if err != nil {
		// handler idempotent, jadi lanjut saja tanpa dedup
		log.Warn("dedup lookup failed", zap.Error(err))
	}
	if seen {
		log.Debug("duplicate event")
		return nil
	}

	p, err := kafka.UnwrapPayload[events.ShipmentStatusChangedPayload](env.Payload)
	if err != nil {
		log.Error("drop bad payload", zap.Error(err))
		return nil
	}
	err = c.Engine.HandleCarrierStatus(ctx, settlement.CarrierUpdate{
		OrderID:    p.OrderID,
		ShipmentID: p.ShipmentID,
		Status:     settlement.NormalizeShipmentStatus(p.Status),
	})
	if errors.Is(err, settlement.ErrInvalidUpdate) || errors.Is(err, settlement.ErrNotFound) {
		log.Warn("drop carrier update", zap.String("order_id", p.OrderID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.Redis.Set(ctx, dedupKey, "1", redisx.TTLDedup).Err(); err != nil {
		log.Warn("dedup mark failed", zap.Error(err))
	}
	return nil
}
