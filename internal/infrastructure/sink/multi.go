package sink

import (
	"context"
	"fmt"

	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/multierr"
)

// MultiSink publishes every batch to each sink in turn. One sink failing does not skip the rest.
type MultiSink struct {
	sinks []domain.TradeSink
	names []string
}

func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add registers a sink under a name used in error messages. Nil sinks are ignored.
func (m *MultiSink) Add(name string, s domain.TradeSink) *MultiSink {
	if s != nil {
		m.sinks = append(m.sinks, s)
		m.names = append(m.names, name)
	}
	return m
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Publish(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	var errs error
	for i, s := range m.sinks {
		if err := s.Publish(ctx, trades); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", m.names[i], err))
		}
	}
	return errs
}
