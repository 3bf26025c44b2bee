package kafka

import (
	"github.com/ariefcatur/go-marketplace-core/internal/events"
	"go.uber.org/zap"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	env, err := events.New(events.EventShipmentStatusChanged, "carrier-gw", "o1",
		events.ShipmentStatusChangedPayload{OrderID: "o1", ShipmentID: "sh1", Status: "DELIVERED"})
	if err != nil {
		t.Fatal(err)
	}
	b, headers, err := Encode(env)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 2 || string(headers[0].Value) != events.EventShipmentStatusChanged || string(headers[1].Value) != "1" {
		t.Fatalf("headers = %+v", headers)
	}

	got, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatal(err)
	}
	p, err := UnwrapPayload[events.ShipmentStatusChangedPayload](got.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.ShipmentID != "sh1" || got.EventID != env.EventID {
		t.Fatalf("roundtrip mismatch: %+v %+v", got, p)
	}
}

func TestDecodeEnvelopeGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("want error")
	}
}

func TestProducerClosedAndFull(t *testing.T) {
	// tanpa Start: inbox tidak pernah dikuras, jadi bisa uji buffer penuh
	p := NewProducer([]string{"localhost:9092"}, "t", 1, zap.NewNop())
	if err := p.Publish([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish([]byte("k"), []byte("v")); err != ErrProducerFull {
		t.Fatalf("err = %v, want ErrProducerFull", err)
	}
	p.Close()
	p.Close()
	if err := p.Publish([]byte("k"), []byte("v")); err != ErrProducerClosed {
		t.Fatalf("err = %v, want ErrProducerClosed", err)
	}
}
