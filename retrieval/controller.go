package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/metrics"
)

// Controller defaults.
const (
	DefaultSpecificK           = 6
	DefaultExhaustiveK         = 50
	DefaultThresholdMultiplier = 1.5
	DefaultThresholdCap        = 2.0
)

// Status tells an uninitialized controller apart from one that found nothing.
type Status int

const (
	// StatusNotInitialized means no fusion engine has been installed yet.
	StatusNotInitialized Status = iota
	// StatusReady means retrieval ran; Results may still be empty.
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "not_initialized"
}

// Outcome is the result of an adaptive retrieval.
type Outcome struct {
	Status    Status
	Intent    core.Intent
	Threshold float64
	Results   []core.FusedResult
}

// Ready reports whether retrieval actually ran.
func (o Outcome) Ready() bool {
	return o.Status == StatusReady
}

// Controller picks k and filtering from the query intent and drives a Fusion.
// It is safe for concurrent use; the fusion engine can be installed after
// the controller starts serving requests.
type Controller struct {
	fusion atomic.Pointer[Fusion]

	specificK   int
	exhaustiveK int
	multiplier  float64
	ceiling     float64
	logger      *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithK sets the result counts for specific and exhaustive queries.
// Non-positive values keep the defaults.
func WithK(specific, exhaustive int) Option {
	return func(c *Controller) error {
		if specific > 0 {
			c.specificK = specific
		}
		if exhaustive > 0 {
			c.exhaustiveK = exhaustive
		}
		return nil
	}
}

// WithThreshold sets the exhaustive threshold multiplier and cap.
func WithThreshold(multiplier, ceiling float64) Option {
	return func(c *Controller) error {
		if multiplier <= 0 || ceiling <= 0 {
			return ErrInvalidThreshold
		}
		c.multiplier = multiplier
		c.ceiling = ceiling
		return nil
	}
}

// NewController creates a Controller with no fusion engine installed.
func NewController(opts ...Option) (*Controller, error) {
	c := &Controller{
		specificK:   DefaultSpecificK,
		exhaustiveK: DefaultExhaustiveK,
		multiplier:  DefaultThresholdMultiplier,
		ceiling:     DefaultThresholdCap,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "retrieval-controller")
	return c, nil
}

// Install makes the controller ready to serve with f.
func (c *Controller) Install(f *Fusion) {
	c.fusion.Store(f)
	c.logger.Info("retrieval ready")
}

// Ready reports whether a fusion engine is installed.
func (c *Controller) Ready() bool {
	return c.fusion.Load() != nil
}

// Retrieve classifies the query and runs the matching strategy.
//
// Specific queries return the top specificK fused results. Exhaustive queries
// fetch exhaustiveK results and keep those whose raw semantic score is at most
// min(best × multiplier, cap), where best is the raw semantic score of the top
// result. Results without a semantic component are always kept.
//
// A partial failure (one retriever down) returns the surviving results with
// the error; callers decide whether to proceed.
func (c *Controller) Retrieve(ctx context.Context, query string) (Outcome, error) {
	return c.RetrieveWithMonitor(ctx, query, nil)
}

// RetrieveWithMonitor is Retrieve with fusion stage callbacks.
func (c *Controller) RetrieveWithMonitor(ctx context.Context, query string, monitor FusionMonitor) (Outcome, error) {
	intent := ClassifyIntent(query)
	outcome := Outcome{Status: StatusNotInitialized, Intent: intent}

	f := c.fusion.Load()
	if f == nil {
		return outcome, nil
	}
	outcome.Status = StatusReady

	start := time.Now()
	k := c.specificK
	if intent == core.IntentExhaustive {
		k = c.exhaustiveK
	}

	results, err := f.FuseWithMonitor(ctx, query, k, monitor)
	c.recordFailure(err)

	if intent == core.IntentExhaustive {
		outcome.Threshold, results = c.applyThreshold(results)
		c.logger.Debug("exhaustive retrieval", "threshold", outcome.Threshold, "kept", len(results))
	}
	outcome.Results = results

	metrics.ObserveRetrieval(intent.String(), time.Since(start), len(results))
	return outcome, err
}

// Search runs hybrid retrieval for a fixed k, skipping intent handling.
// k <= 0 uses the specific default.
func (c *Controller) Search(ctx context.Context, query string, k int) (Outcome, error) {
	return c.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with fusion stage callbacks.
func (c *Controller) SearchWithMonitor(ctx context.Context, query string, k int, monitor FusionMonitor) (Outcome, error) {
	outcome := Outcome{Status: StatusNotInitialized, Intent: core.IntentSpecific}
	f := c.fusion.Load()
	if f == nil {
		return outcome, nil
	}
	outcome.Status = StatusReady
	if k <= 0 {
		k = c.specificK
	}

	start := time.Now()
	results, err := f.FuseWithMonitor(ctx, query, k, monitor)
	c.recordFailure(err)
	outcome.Results = results
	metrics.ObserveRetrieval("search", time.Since(start), len(results))
	return outcome, err
}

// Threshold returns min(best × multiplier, cap).
func (c *Controller) Threshold(best float64) float64 {
	return min(best*c.multiplier, c.ceiling)
}

func (c *Controller) applyThreshold(results []core.FusedResult) (float64, []core.FusedResult) {
	if len(results) == 0 {
		return 0, results
	}

	best, ok := bestSemantic(results)
	if !ok {
		return 0, results
	}
	threshold := c.Threshold(best)

	kept := make([]core.FusedResult, 0, len(results))
	for _, r := range results {
		if !r.HasSemantic || r.RawSemanticScore <= threshold {
			kept = append(kept, r)
		}
	}
	return threshold, kept
}

// bestSemantic returns the raw semantic score of the top result, or the
// highest raw semantic score among results when the top one has none.
func bestSemantic(results []core.FusedResult) (float64, bool) {
	if results[0].HasSemantic {
		return results[0].RawSemanticScore, true
	}
	found := false
	var best float64
	for _, r := range results {
		if r.HasSemantic && (!found || r.RawSemanticScore > best) {
			best = r.RawSemanticScore
			found = true
		}
	}
	return best, found
}

func (c *Controller) recordFailure(err error) {
	if err == nil {
		return
	}
	var failure *RetrievalFailure
	if errors.As(err, &failure) {
		metrics.RetrievalFailed(failure.Stage)
		return
	}
	metrics.RetrievalFailed("unknown")
}
