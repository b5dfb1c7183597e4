package nodes

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ohnodev/obelisk-core/node"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// Scheduler is the autonomous timer node. On every runner tick it checks
	// whether its deadline passed; when it fires it emits a trigger event and
	// arms a fresh deadline drawn uniformly from [min_interval_seconds,
	// max_interval_seconds]. Equal bounds give a fixed cadence.
	Scheduler struct {
		node.Base

		minInterval time.Duration
		maxInterval time.Duration
		next        time.Time
		fireCount   uint64
		rng         *rand.Rand
	}
)

const (
	defaultMinInterval = 1 * time.Second
	defaultMaxInterval = 5 * time.Second
)

// NewScheduler constructs a scheduler node from its interval inputs.
func NewScheduler(def workflow.NodeDef) (node.Node, error) {
	s := &Scheduler{
		Base: node.NewBase(def, node.ModeContinuous),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.minInterval = time.Duration(floatInput(&s.Base, "min_interval_seconds", defaultMinInterval.Seconds()) * float64(time.Second))
	s.maxInterval = time.Duration(floatInput(&s.Base, "max_interval_seconds", defaultMaxInterval.Seconds()) * float64(time.Second))
	if s.minInterval <= 0 {
		return nil, fmt.Errorf("scheduler %s: min_interval_seconds must be positive", def.ID)
	}
	if s.maxInterval < s.minInterval {
		return nil, fmt.Errorf("scheduler %s: max_interval_seconds %s is below min_interval_seconds %s",
			def.ID, s.maxInterval, s.minInterval)
	}
	s.arm(time.Now())
	return s, nil
}

// Execute implements node.Node. A scheduler in a one-shot pass is idle: the
// trigger semantics only exist under the runner's tick loop.
func (s *Scheduler) Execute(ctx context.Context, ec *node.Context) (map[string]any, error) {
	return map[string]any{"trigger": false}, nil
}

// OnTick implements node.Ticker.
func (s *Scheduler) OnTick(ctx context.Context, ec *node.Context) (map[string]any, bool, error) {
	now := time.Now()
	if now.Before(s.next) {
		return nil, false, nil
	}
	s.fireCount++
	s.arm(now)
	return map[string]any{
		"trigger":    true,
		"timestamp":  now.UTC().Format(time.RFC3339Nano),
		"fire_count": s.fireCount,
	}, true, nil
}

// arm picks the next deadline uniformly from the configured interval range.
func (s *Scheduler) arm(from time.Time) {
	span := s.maxInterval - s.minInterval
	delay := s.minInterval
	if span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span) + 1))
	}
	s.next = from.Add(delay)
}
