package usecase

import (
	"fmt"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

// StrategyRegistry holds the strategies in registration order and fans signal requests out to them.
type StrategyRegistry struct {
	strategies    []Strategy
	byName        map[string]Strategy
	minConfidence float64
	logger        *zap.Logger
}

// NewStrategyRegistry registers the five built-in strategies.
func NewStrategyRegistry(data domain.MarketData, cfg config.Strategies, logger *zap.Logger) *StrategyRegistry {
	return NewStrategyRegistryWith(cfg.MinSignalConfidence, logger,
		NewMomentumStrategy(data, cfg),
		NewReversalStrategy(data, cfg),
		NewBreakoutStrategy(data, cfg),
		NewScalpingStrategy(data, cfg),
		NewGapStrategy(data, cfg),
	)
}

func NewStrategyRegistryWith(minConfidence float64, logger *zap.Logger, strategies ...Strategy) *StrategyRegistry {
	r := &StrategyRegistry{
		byName:        make(map[string]Strategy, len(strategies)),
		minConfidence: minConfidence,
		logger:        logger,
	}
	for _, s := range strategies {
		if _, dup := r.byName[s.Name()]; dup {
			continue
		}
		r.strategies = append(r.strategies, s)
		r.byName[s.Name()] = s
	}
	return r
}

func (r *StrategyRegistry) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

func (r *StrategyRegistry) Names() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

func (r *StrategyRegistry) Get(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Signal asks a single strategy for a signal. Panics are turned into errors.
func (r *StrategyRegistry) Signal(s Strategy, ticker string) (sig *domain.Signal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			sig, err = nil, fmt.Errorf("strategy %s panicked on %s: %v", s.Name(), ticker, rec)
		}
	}()
	return s.GenerateSignal(ticker)
}

// GetAllSignals returns the signals above the confidence floor, in registration order.
// A failing strategy is logged and skipped.
func (r *StrategyRegistry) GetAllSignals(ticker string) []*domain.Signal {
	var signals []*domain.Signal
	for _, s := range r.strategies {
		sig, err := r.Signal(s, ticker)
		if err != nil {
			r.logger.Error("Error getting signal",
				zap.String("strategy", s.Name()), zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if sig != nil && sig.Confidence > r.minConfidence {
			signals = append(signals, sig)
		}
	}
	return signals
}

// GetBestSignal returns the highest-confidence signal; ties go to the earliest registered strategy.
func (r *StrategyRegistry) GetBestSignal(ticker string) *domain.Signal {
	var best *domain.Signal
	for _, sig := range r.GetAllSignals(ticker) {
		if best == nil || sig.Confidence > best.Confidence {
			best = sig
		}
	}
	return best
}

// ShouldExitPosition delegates to the named strategy. Unknown strategies never force an exit.
func (r *StrategyRegistry) ShouldExitPosition(ticker, strategy string, side domain.Action, entryPrice float64, entryTime time.Time, currentPrice float64) bool {
	s, ok := r.byName[strategy]
	if !ok {
		return false
	}
	return s.ShouldExit(ticker, side, entryPrice, entryTime, currentPrice)
}

// StrategyVersion returns the version of the named strategy, or "" if unknown.
func (r *StrategyRegistry) StrategyVersion(name string) string {
	if s, ok := r.byName[name]; ok {
		return s.Version()
	}
	return ""
}
