package jobs

import (
	"context"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"time"
)

// Locker dipenuhi *redisx.Locker.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler menjalankan setiap job di ticker sendiri. Satu run per job di seluruh
// replica: lock Redis diambil sebelum run, replica yang kalah cukup skip.
type Scheduler struct {
	Jobs    []Job
	Locker  Locker
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Tracer  trace.Tracer
}

func (s *Scheduler) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return noop.NewTracerProvider().Tracer("jobs")
}

// Run blocking sampai ctx cancel. Setiap job jalan sekali di awal lalu per Interval.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.Jobs {
		j := j
		if j.Interval <= 0 {
			s.Log.Warn("job disabled", zap.String("job", j.Name))
			continue
		}
		g.Go(func() error {
			t := time.NewTicker(j.Interval)
			defer t.Stop()
			for {
				s.runOnce(ctx, j)
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
				}
			}
		})
	}
	return g.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	log := s.Log.With(zap.String("job", j.Name))

	// TTL = interval: lock lepas sendiri kalau replica pemegang mati di tengah run
	release, ok, err := s.Locker.Acquire(ctx, j.Name, j.Interval)
	if err != nil {
		log.Warn("job lock failed", zap.Error(err))
		return
	}
	if !ok {
		log.Debug("job held by another replica")
		return
	}
	defer release()

	ctx, span := s.tracer().Start(ctx, "job."+j.Name, trace.WithAttributes(attribute.String("job", j.Name)))
	defer span.End()

	start := time.Now()
	err = j.Run(ctx)
	s.Metrics.JobDuration.WithLabelValues(j.Name, metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		log.Error("job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
	}
}
