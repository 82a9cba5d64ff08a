// Package generation drives a streaming chat model and guards the stream
// against runaway output and stalled providers.
package generation

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/Devcavi19/adal-4naga-app/ai"
	"github.com/Devcavi19/adal-4naga-app/metrics"
)

// Driver defaults.
const (
	DefaultMaxChunks         = 10000
	DefaultInactivityTimeout = 30 * time.Second
	DefaultProgressInterval  = 100
)

// State of a Stream.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Warning is set when a guard stops the stream. The answer accumulated so
// far is kept and the stream still completes.
type Warning string

const (
	WarningNone            Warning = ""
	WarningResponseTooLong Warning = "response_too_long"
	WarningStreamTimeout   Warning = "stream_timeout"
)

// Result is the terminal state of a Stream.
type Result struct {
	State      State
	Answer     string
	ChunkCount int
	CharCount  int
	Elapsed    time.Duration
	Warning    Warning
	Err        error
	Category   Category
}

// Outcome is a short label for analytics and metrics: "completed", the
// warning code, "cancelled" or the error category.
func (r Result) Outcome() string {
	switch {
	case r.State == StateCompleted && r.Warning != WarningNone:
		return string(r.Warning)
	case r.State == StateCompleted:
		return "completed"
	case r.Category != CategoryNone:
		return string(r.Category)
	case r.Err != nil:
		return "cancelled"
	default:
		return r.State.String()
	}
}

// Driver starts guarded answer streams.
type Driver struct {
	generator        ai.Generator
	maxChunks        int
	inactivity       time.Duration
	progressInterval int
	logger           *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithMaxChunks sets the chunk cap. Default is 10000.
func WithMaxChunks(n int) Option {
	return func(d *Driver) error {
		if n <= 0 {
			return fmt.Errorf("max chunks must be positive, got %d", n)
		}
		d.maxChunks = n
		return nil
	}
}

// WithInactivityTimeout sets the longest allowed gap between chunks. Default is 30s.
func WithInactivityTimeout(timeout time.Duration) Option {
	return func(d *Driver) error {
		if timeout <= 0 {
			return fmt.Errorf("inactivity timeout must be positive, got %s", timeout)
		}
		d.inactivity = timeout
		return nil
	}
}

// NewDriver creates a Driver over generator.
func NewDriver(generator ai.Generator, opts ...Option) (*Driver, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	d := &Driver{
		generator:        generator,
		maxChunks:        DefaultMaxChunks,
		inactivity:       DefaultInactivityTimeout,
		progressInterval: DefaultProgressInterval,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "stream-driver")
	return d, nil
}

// Start prepares a stream for req. Nothing is sent to the model until the
// stream's Tokens sequence is ranged over.
func (d *Driver) Start(ctx context.Context, req ai.GenerationRequest) *Stream {
	return &Stream{
		ctx:    ctx,
		req:    req,
		driver: d,
	}
}

// Stream is one guarded answer stream. It is not safe for concurrent use.
type Stream struct {
	ctx    context.Context
	req    ai.GenerationRequest
	driver *Driver

	state     State
	answer    strings.Builder
	chunks    int
	started   time.Time
	lastChunk time.Time
	finished  time.Time
	warning   Warning
	err       error
	category  Category
}

type fragment struct {
	text string
	err  error
}

// Tokens returns the answer fragments as they arrive. The sequence can be
// ranged over once; breaking out of the loop or cancelling the context stops
// the model call. Empty fragments are skipped.
func (s *Stream) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.state != StateIdle {
			return
		}
		s.state = StateStreaming
		s.started = time.Now()
		s.lastChunk = s.started

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		fragments := make(chan fragment)
		go func() {
			defer close(fragments)
			for text, err := range s.driver.generator.Stream(ctx, s.req) {
				select {
				case fragments <- fragment{text: text, err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		d := s.driver
		timer := time.NewTimer(d.inactivity)
		defer timer.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.fail(fmt.Errorf("%w: %w", ErrStreamCancelled, s.ctx.Err()), CategoryNone)
				return

			case <-timer.C:
				s.trip(WarningStreamTimeout)
				return

			case frag, ok := <-fragments:
				if !ok {
					if err := s.ctx.Err(); err != nil {
						s.fail(fmt.Errorf("%w: %w", ErrStreamCancelled, err), CategoryNone)
						return
					}
					s.complete()
					return
				}
				if frag.err != nil {
					if err := s.ctx.Err(); err != nil {
						s.fail(fmt.Errorf("%w: %w", ErrStreamCancelled, err), CategoryNone)
						return
					}
					s.failGeneration(frag.err)
					return
				}
				if frag.text == "" {
					continue
				}

				now := time.Now()
				if s.chunks+1 > d.maxChunks {
					s.trip(WarningResponseTooLong)
					return
				}
				if now.Sub(s.lastChunk) > d.inactivity {
					s.trip(WarningStreamTimeout)
					return
				}

				s.chunks++
				s.answer.WriteString(frag.text)
				s.lastChunk = now
				timer.Reset(d.inactivity)

				if s.chunks%d.progressInterval == 0 {
					d.logger.Debug("stream progress",
						"chunks", s.chunks,
						"chars", s.answer.Len(),
						"elapsed", now.Sub(s.started))
				}

				if !yield(frag.text) {
					s.fail(ErrStreamCancelled, CategoryNone)
					return
				}
			}
		}
	}
}

// Drain consumes the remaining fragments and returns the result.
func (s *Stream) Drain() Result {
	for range s.Tokens() {
	}
	return s.Result()
}

// Result reports the stream outcome. It is meaningful once Tokens has
// finished; before that the state is idle or streaming.
func (s *Stream) Result() Result {
	end := s.finished
	if end.IsZero() && !s.started.IsZero() {
		end = time.Now()
	}
	var elapsed time.Duration
	if !s.started.IsZero() {
		elapsed = end.Sub(s.started)
	}
	answer := s.answer.String()
	return Result{
		State:      s.state,
		Answer:     answer,
		ChunkCount: s.chunks,
		CharCount:  len([]rune(answer)),
		Elapsed:    elapsed,
		Warning:    s.warning,
		Err:        s.err,
		Category:   s.category,
	}
}

func (s *Stream) complete() {
	s.state = StateCompleted
	s.finish()
	s.driver.logger.Info("stream completed", "chunks", s.chunks, "chars", s.answer.Len(), "elapsed", s.finished.Sub(s.started))
}

func (s *Stream) trip(w Warning) {
	s.state = StateCompleted
	s.warning = w
	s.finish()
	s.driver.logger.Warn("stream stopped by guard", "warning", string(w), "chunks", s.chunks)
}

func (s *Stream) failGeneration(err error) {
	category := Classify(err)
	s.fail(&GenerationFailure{Category: category, Err: err}, category)
}

func (s *Stream) fail(err error, category Category) {
	s.state = StateErrored
	s.err = err
	s.category = category
	s.finish()
	s.driver.logger.Error("stream failed", "err", err, "chunks", s.chunks, "partial", s.answer.Len() > 0)
}

func (s *Stream) finish() {
	s.finished = time.Now()
	r := s.Result()
	metrics.ObserveStream(r.Outcome(), r.ChunkCount, r.Elapsed)
}
