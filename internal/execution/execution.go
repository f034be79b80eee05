// Package execution validates trading signals and applies them to the
// portfolio ledger.
package execution

import (
	"time"

	"go.uber.org/zap"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
)

// Sizer converts a validated signal into a share count. The allocator is the
// authoritative sizer when present; StrategySizer is the fallback.
type Sizer interface {
	PositionSize(symbol string, pf *portfolio.Portfolio, price, portfolioValue float64, sig core.Signal) float64
}

// StrategySizer adapts a strategy's default sizing helper to the Sizer
// contract. Sells liquidate the full position.
type StrategySizer struct {
	Strategy strategy.Strategy
}

func (s StrategySizer) PositionSize(symbol string, pf *portfolio.Portfolio, price, portfolioValue float64, sig core.Signal) float64 {
	switch sig.Action {
	case core.ActionBuy:
		return s.Strategy.PositionSize(pf, price, portfolioValue)
	case core.ActionSell:
		return pf.Position(symbol).Shares
	default:
		return 0
	}
}

// Fill describes a successfully executed trade.
type Fill struct {
	Symbol string
	Side   core.Action
	Shares float64
	Price  float64
	Value  float64
	Date   time.Time
}

// Service executes signals against a portfolio, tracking success and failure
// counts for post-run diagnostics. It never retries: a failed execution is
// simply not recorded as a trade.
type Service struct {
	logger *zap.Logger
	sizer  Sizer

	executed int
	failed   int
}

// New creates an execution service with the given sizer.
func New(logger *zap.Logger, sizer Sizer) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, sizer: sizer}
}

// Executed returns the number of successfully executed signals.
func (s *Service) Executed() int { return s.executed }

// Failed returns the number of signals that failed execution.
func (s *Service) Failed() int { return s.failed }

// Execute validates the signal, sizes it and mutates the portfolio. This is
// the single point where an invalid signal is distinguished from an execution
// rejected by portfolio rules.
func (s *Service) Execute(sig core.Signal, pf *portfolio.Portfolio, portfolioValue float64) (*Fill, error) {
	if err := validate(sig); err != nil {
		s.failed++
		return nil, err
	}

	var fill *Fill
	var err error
	switch sig.Action {
	case core.ActionBuy:
		fill, err = s.buy(sig, pf, portfolioValue)
	case core.ActionSell:
		fill, err = s.sell(sig, pf, portfolioValue)
	}

	if err != nil {
		s.failed++
		s.logger.Debug("execution rejected",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.Error(err),
		)
		return nil, err
	}

	s.executed++
	s.logger.Debug("trade executed",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Float64("shares", fill.Shares),
		zap.Float64("price", fill.Price),
	)
	return fill, nil
}

// validate fails fast with a specific reason on malformed signals.
func validate(sig core.Signal) error {
	switch {
	case sig.Symbol == "":
		return core.Wrapf(core.ErrInvalidSignal, "signal has no symbol")
	case !sig.Actionable():
		return core.Wrapf(core.ErrInvalidSignal, "%s signal requires no execution", sig.Action)
	case sig.Price <= 0:
		return core.Wrapf(core.ErrInvalidSignal, "signal price %v must be positive", sig.Price)
	case sig.Date.IsZero():
		return core.Wrapf(core.ErrInvalidSignal, "signal has no date")
	}
	return nil
}

func (s *Service) buy(sig core.Signal, pf *portfolio.Portfolio, portfolioValue float64) (*Fill, error) {
	shares := s.sizer.PositionSize(sig.Symbol, pf, sig.Price, portfolioValue, sig)
	if shares <= 0 {
		return nil, core.Wrapf(core.ErrInsufficientFunds, "buy of %s sized to zero", sig.Symbol)
	}

	if !pf.Buy(sig.Symbol, shares, sig.Price) {
		return nil, core.Wrapf(core.ErrOrderRejected, "buy %v %s @ %v rejected by ledger", shares, sig.Symbol, sig.Price)
	}

	return &Fill{
		Symbol: sig.Symbol,
		Side:   core.ActionBuy,
		Shares: shares,
		Price:  sig.Price,
		Value:  shares * sig.Price,
		Date:   sig.Date,
	}, nil
}

func (s *Service) sell(sig core.Signal, pf *portfolio.Portfolio, portfolioValue float64) (*Fill, error) {
	if !pf.HasPosition(sig.Symbol) {
		return nil, core.Wrapf(core.ErrNoPosition, "no %s position to sell", sig.Symbol)
	}

	shares := s.sizer.PositionSize(sig.Symbol, pf, sig.Price, portfolioValue, sig)
	if shares <= 0 {
		return nil, core.Wrapf(core.ErrOrderRejected, "sell of %s sized to zero", sig.Symbol)
	}

	if !pf.Sell(sig.Symbol, shares, sig.Price) {
		return nil, core.Wrapf(core.ErrOrderRejected, "sell %v %s @ %v rejected by ledger", shares, sig.Symbol, sig.Price)
	}

	return &Fill{
		Symbol: sig.Symbol,
		Side:   core.ActionSell,
		Shares: shares,
		Price:  sig.Price,
		Value:  shares * sig.Price,
		Date:   sig.Date,
	}, nil
}
