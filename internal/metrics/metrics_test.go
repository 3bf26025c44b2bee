package metrics

import (
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"testing"
)

func TestNewRegistersOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Reservations.WithLabelValues(Result(nil)).Inc()
	m.Reservations.WithLabelValues(Result(errors.New("x"))).Add(2)
	m.ReservationsExpired.Add(5)

	if got := testutil.ToFloat64(m.Reservations.WithLabelValues("error")); got != 2 {
		t.Errorf("error reservations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReservationsExpired); got != 5 {
		t.Errorf("expired = %v, want 5", got)
	}

	// registry kedua harus independen (tidak ada global)
	New(prometheus.NewRegistry())
}
