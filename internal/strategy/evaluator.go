package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/SolarWolf-Code/quantedge/internal/indicators"
	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
)

const weightTolerance = 1e-6

// Directive is the evaluator's output for one rebalance: per-symbol buy
// weights (fractions of available cash) and sell weights (fractions of the
// held position).
type Directive struct {
	Buy  map[string]float64 `json:"buy"`
	Sell map[string]float64 `json:"sell"`
}

// NewDirective returns an empty directive.
func NewDirective() *Directive {
	return &Directive{
		Buy:  make(map[string]float64),
		Sell: make(map[string]float64),
	}
}

// Evaluator walks a strategy tree at an as-of date and accumulates a
// transaction directive. It never mutates the tree.
type Evaluator struct {
	engine *indicators.Engine
	repo   marketdata.Repository
	log    zerolog.Logger
}

// NewEvaluator creates an evaluator over an indicator engine and price
// repository.
func NewEvaluator(engine *indicators.Engine, repo marketdata.Repository, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate walks the rule trees as of the given date and returns the
// accumulated directive.
func (e *Evaluator) Evaluate(rules NodeList, asOf time.Time) (*Directive, error) {
	directive := NewDirective()
	for _, root := range rules {
		if err := e.process(root, asOf, directive); err != nil {
			return nil, err
		}
	}
	return directive, nil
}

func (e *Evaluator) process(node Node, asOf time.Time, d *Directive) error {
	switch n := node.(type) {
	case *Condition:
		result, err := e.evalCondition(n, asOf)
		if err != nil {
			return err
		}

		branch := n.IfFalse
		if result {
			branch = n.IfTrue
		}
		for _, child := range branch {
			if err := e.process(child, asOf, d); err != nil {
				return err
			}
		}
		return nil

	case *WeightAction:
		return e.applyWeightAction(n, asOf, d)
	}

	return fmt.Errorf("%w: %T", ErrUnknownNodeType, node)
}

// evalCondition evaluates a condition node. Missing data makes the
// condition false: the strategy simply skips allocations it cannot justify.
func (e *Evaluator) evalCondition(c *Condition, asOf time.Time) (bool, error) {
	values, ok, err := e.evalIndicator(c.Indicator, asOf)
	if err != nil {
		return false, err
	}
	if !ok {
		e.log.Debug().
			Str("indicator", c.Indicator.Name).
			Str("symbol", c.Indicator.Symbol).
			Str("as_of", marketdata.DateKey(asOf)).
			Msg("Indicator unavailable, condition treated as false")
		return false, nil
	}

	// Composite results reduce by AND over pointwise comparisons.
	if c.Indicator.IsComposite() {
		thresholds := c.Value.List()
		if thresholds != nil && len(thresholds) != len(values) {
			return false, fmt.Errorf("composite indicator has %d values but threshold has %d", len(values), len(thresholds))
		}
		for i, v := range values {
			threshold := 0.0
			if thresholds != nil {
				threshold = thresholds[i]
			} else if scalar, isScalar := c.Value.Scalar(); isScalar {
				threshold = scalar
			} else {
				return false, fmt.Errorf("condition on %q has no threshold value", c.Indicator.Name)
			}
			match, err := compare(v, threshold, c.Comparator)
			if err != nil {
				return false, err
			}
			if !match {
				return false, nil
			}
		}
		return true, nil
	}

	scalar, isScalar := c.Value.Scalar()
	if !isScalar {
		return false, fmt.Errorf("condition on %q compares a scalar indicator against a list", c.Indicator.Name)
	}
	return compare(values[0], scalar, c.Comparator)
}

// evalIndicator returns the indicator's values (one element for scalar
// indicators, one per input for the "and" composite). ok is false when data
// is missing: too little history, or a symbol without bars before asOf.
func (e *Evaluator) evalIndicator(ind Indicator, asOf time.Time) ([]float64, bool, error) {
	if ind.IsComposite() {
		if len(ind.Inputs) == 0 {
			return nil, false, fmt.Errorf("composite indicator %q requires inputs", ind.Name)
		}
		values := make([]float64, 0, len(ind.Inputs))
		for _, input := range ind.Inputs {
			vs, ok, err := e.evalIndicator(input, asOf)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			values = append(values, vs...)
		}
		return values, true, nil
	}

	if ind.Symbol == "" && ind.Name != "vix" && ind.Name != "vix_change" {
		return nil, false, fmt.Errorf("indicator %q missing symbol", ind.Name)
	}

	// A symbol with no bars before asOf cannot be evaluated; skip rather
	// than abort.
	if ind.Symbol != "" {
		available, err := e.symbolAvailable(ind.Symbol, asOf)
		if err != nil {
			return nil, false, err
		}
		if !available {
			return nil, false, nil
		}
	}

	value, err := e.engine.Evaluate(ind.Name, ind.Symbol, ind.Params, asOf)
	if err != nil {
		if errors.Is(err, marketdata.ErrSymbolUnknown) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if value == nil {
		return nil, false, nil
	}
	return []float64{*value}, true, nil
}

func (e *Evaluator) symbolAvailable(symbol string, asOf time.Time) (bool, error) {
	earliest, err := e.repo.EarliestDate(symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrSymbolUnknown) {
			return false, nil
		}
		return false, err
	}
	return earliest != nil && !earliest.After(asOf), nil
}

// applyWeightAction filters assets by data availability, then accumulates
// buy or sell weights into the directive. Sibling actions combine: buy
// weights sum per symbol.
func (e *Evaluator) applyWeightAction(w *WeightAction, asOf time.Time, d *Directive) error {
	// weighted_buy validates the declared weights before any filtering.
	if w.WeightType == "weighted_buy" {
		total := 0.0
		for _, asset := range w.Assets {
			total += asset.Weight
		}
		if math.Abs(total-1.0) > weightTolerance {
			return fmt.Errorf("%w: total is %g", ErrWeightSumInvalid, total)
		}
	}

	valid := make([]Asset, 0, len(w.Assets))
	for _, asset := range w.Assets {
		available, err := e.symbolAvailable(asset.Symbol, asOf)
		if err != nil {
			return err
		}
		if !available {
			e.log.Debug().
				Str("symbol", asset.Symbol).
				Str("as_of", marketdata.DateKey(asOf)).
				Msg("Skipping asset, no data available")
			continue
		}
		valid = append(valid, asset)
	}

	if len(valid) == 0 {
		e.log.Debug().Str("weight_type", w.WeightType).Msg("No valid assets for weight action")
		return nil
	}

	switch w.WeightType {
	case "equal_buy":
		weight := 1.0 / float64(len(valid))
		for _, asset := range valid {
			d.Buy[asset.Symbol] += weight
		}
	case "weighted_buy":
		// Renormalize over the surviving assets so the directive still
		// allocates the full buy budget.
		total := 0.0
		for _, asset := range valid {
			total += asset.Weight
		}
		for _, asset := range valid {
			d.Buy[asset.Symbol] += asset.Weight / total
		}
	case "all_sell":
		for _, asset := range valid {
			d.Sell[asset.Symbol] = 1.0
		}
	case "partial_sell":
		for _, asset := range valid {
			d.Sell[asset.Symbol] = asset.Percentage
		}
	default:
		return fmt.Errorf("%w: weight type %q", ErrUnknownNodeType, w.WeightType)
	}

	return nil
}

func compare(value, threshold float64, comparator string) (bool, error) {
	switch comparator {
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	case "==":
		return value == threshold, nil
	case "!=":
		return value != threshold, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownComparator, comparator)
}
