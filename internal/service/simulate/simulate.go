// Package simulate injects the demo's artificial processing latency.
// Each step sleeps for a uniformly sampled duration from its configured
// range; a nil or disabled simulator is a no-op, which is how tests run.
package simulate

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/storefront-labs/storefront-go/internal/config"
)

type Simulator struct {
	cfg   config.Simulation
	sleep func(context.Context, time.Duration)
}

func New(cfg config.Simulation) *Simulator {
	return &Simulator{cfg: cfg, sleep: sleepContext}
}

func (s *Simulator) List(ctx context.Context) {
	if s == nil {
		return
	}
	s.pause(ctx, s.cfg.ListMin, s.cfg.ListMax)
}

func (s *Simulator) Order(ctx context.Context) {
	if s == nil {
		return
	}
	s.pause(ctx, s.cfg.OrderMin, s.cfg.OrderMax)
}

func (s *Simulator) Payment(ctx context.Context) {
	if s == nil {
		return
	}
	s.pause(ctx, s.cfg.PaymentMin, s.cfg.PaymentMax)
}

func (s *Simulator) Inventory(ctx context.Context) {
	if s == nil {
		return
	}
	s.pause(ctx, s.cfg.InventoryMin, s.cfg.InventoryMax)
}

func (s *Simulator) Notification(ctx context.Context) {
	if s == nil {
		return
	}
	s.pause(ctx, s.cfg.NotificationMin, s.cfg.NotificationMax)
}

func (s *Simulator) pause(ctx context.Context, min, max time.Duration) {
	if !s.cfg.Enabled || max <= 0 {
		return
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}
	s.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
