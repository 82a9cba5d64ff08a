// Package persistence saves completed answer transcripts off the request path.
//
// A Sink accepts transcripts without blocking, queues them, and writes the
// conversation turns, the analytics event and any error record on a worker
// pool. Failures are retried with backoff and then logged; they never reach
// the caller that submitted the transcript.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/metrics"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/bytedance/sonic"
	"github.com/panjf2000/ants/v2"
)

// Sink defaults.
const (
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultEndpoint    = "/api/chat"

	maxErrorMessage = 500
	maxRequestData  = 200
)

// Failure describes why an answer failed.
type Failure struct {
	Type    string
	Message string
}

// Transcript is everything recorded about one answered question.
type Transcript struct {
	UserID    string
	SessionID string
	Question  string
	Answer    string
	Results   []core.FusedResult
	Chunks    int
	Chars     int
	Elapsed   time.Duration
	Outcome   string
	StartedAt time.Time
	Endpoint  string
	Failure   *Failure
}

// Stats are cumulative sink counters.
type Stats struct {
	Queued    int64
	Completed int64
	Failed    int64
	Rejected  int64
	Pending   int
}

// Sink persists transcripts asynchronously.
type Sink struct {
	conversations storage.ConversationRepository
	analytics     storage.AnalyticsRepository
	pool          *ants.Pool
	queue         chan Transcript
	queueSize     int
	poolSize      int
	maxAttempts   int
	baseDelay     time.Duration
	keywordCount  int
	logger        *slog.Logger

	mu         sync.RWMutex
	closed     bool
	dispatched chan struct{}
	inflight   sync.WaitGroup

	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithQueueSize sets how many transcripts may wait for a worker.
// Default is 256.
func WithQueueSize(size int) Option {
	return func(s *Sink) error {
		if size < 1 {
			return fmt.Errorf("queue size must be positive, got %d", size)
		}
		s.queueSize = size
		return nil
	}
}

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Sink) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithRetry sets the attempts per write and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Sink) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxAttempts = maxAttempts
		s.baseDelay = baseDelay
		return nil
	}
}

// WithKeywordCount sets how many keywords are stored per event.
// Default is 10.
func WithKeywordCount(n int) Option {
	return func(s *Sink) error {
		s.keywordCount = n
		return nil
	}
}

// NewSink creates a Sink and starts its dispatcher.
// Callers must call Close to drain and release it.
func NewSink(
	conversations storage.ConversationRepository,
	analytics storage.AnalyticsRepository,
	opts ...Option,
) (*Sink, error) {
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if analytics == nil {
		return nil, ErrAnalyticsRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Sink{
		conversations: conversations,
		analytics:     analytics,
		queueSize:     DefaultQueueSize,
		poolSize:      poolSize,
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		keywordCount:  DefaultKeywordCount,
		logger:        slog.Default(),
		dispatched:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "persistence-sink")

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.queue = make(chan Transcript, s.queueSize)

	go s.dispatch()
	return s, nil
}

// Submit queues t for persistence without blocking.
// Returns ErrSinkSaturated when the queue is full and ErrSinkClosed after Close.
func (s *Sink) Submit(t Transcript) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- t:
		s.queued.Add(1)
		metrics.SetSinkQueueDepth(len(s.queue))
		return nil
	default:
		s.rejected.Add(1)
		metrics.SinkTask("rejected")
		s.logger.Warn("persistence queue full, dropping transcript",
			"session", t.SessionID, "queue_size", s.queueSize)
		return ErrSinkSaturated
	}
}

// Stats returns the current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Queued:    s.queued.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Rejected:  s.rejected.Load(),
		Pending:   len(s.queue),
	}
}

// Close stops accepting transcripts, waits for queued ones to be written
// and releases the worker pool. If ctx ends first its error is returned and
// remaining work keeps running in the background.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-s.dispatched
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.pool.Release()
		s.logger.Info("persistence sink closed", "completed", s.completed.Load(), "failed", s.failed.Load())
		return nil
	case <-ctx.Done():
		go func() {
			<-drained
			s.pool.Release()
		}()
		return ctx.Err()
	}
}

// dispatch hands queued transcripts to the pool. Pool.Submit blocks while
// every worker is busy, which lets the queue fill up.
func (s *Sink) dispatch() {
	defer close(s.dispatched)
	for t := range s.queue {
		metrics.SetSinkQueueDepth(len(s.queue))
		s.inflight.Add(1)
		err := s.pool.Submit(func() {
			defer s.inflight.Done()
			s.process(t)
		})
		if err != nil {
			s.inflight.Done()
			s.failed.Add(1)
			metrics.SinkTask("failed")
			s.logger.Error("error submitting persistence task", "err", err, "session", t.SessionID)
		}
	}
}

func (s *Sink) process(t Transcript) {
	ctx := context.Background()
	ok := true

	started := t.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}

	turns := []*core.ConversationTurn{{
		SessionID: t.SessionID,
		Role:      core.RoleUser,
		Text:      t.Question,
		Timestamp: started,
	}}
	if t.Answer != "" {
		turns = append(turns, &core.ConversationTurn{
			SessionID: t.SessionID,
			Role:      core.RoleAssistant,
			Text:      t.Answer,
			Timestamp: started.Add(t.Elapsed),
		})
	}
	for _, turn := range turns {
		err := Retry(ctx, s.logger, s.maxAttempts, s.baseDelay, func() error {
			_, err := s.conversations.AddTurns(ctx, turn)
			return err
		})
		if err != nil {
			ok = false
			s.logger.Error("error saving conversation turn", "err", err, "session", t.SessionID, "role", turn.Role)
		}
	}

	event := &core.AnalyticsEvent{
		UserID:             t.UserID,
		SessionID:          t.SessionID,
		QueryText:          t.Question,
		Keywords:           ExtractKeywords(t.Question, s.keywordCount),
		DocumentsRetrieved: len(t.Results),
		AverageHybridScore: AverageHybridScore(t.Results),
		SearchMethod:       core.SearchMethodHybrid,
		ResponseTime:       t.Elapsed,
		CharCount:          t.Chars,
		ChunkCount:         t.Chunks,
		Outcome:            t.Outcome,
		CreatedAt:          started,
	}
	err := Retry(ctx, s.logger, s.maxAttempts, s.baseDelay, func() error {
		_, err := s.analytics.AddEvents(ctx, event)
		return err
	})
	if err != nil {
		ok = false
		s.logger.Error("error saving analytics event", "err", err, "session", t.SessionID)
	}

	if t.Failure != nil {
		record := NewErrorRecord(t.UserID, t.Endpoint, t.Question, *t.Failure)
		err := Retry(ctx, s.logger, s.maxAttempts, s.baseDelay, func() error {
			return s.analytics.AddErrorRecords(ctx, record)
		})
		if err != nil {
			ok = false
			s.logger.Error("error saving error record", "err", err, "session", t.SessionID)
		}
	}

	if ok {
		s.completed.Add(1)
		metrics.SinkTask("completed")
		return
	}
	s.failed.Add(1)
	metrics.SinkTask("failed")
}

// NewErrorRecord builds the error log entry for a failed question.
func NewErrorRecord(userID, endpoint, question string, failure Failure) *core.ErrorRecord {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	requestData, err := requestDataJSON(truncateRunes(question, maxRequestData))
	if err != nil {
		requestData = ""
	}
	return &core.ErrorRecord{
		UserID:      userID,
		ErrorType:   failure.Type,
		Message:     truncateRunes(failure.Message, maxErrorMessage),
		Endpoint:    endpoint,
		RequestData: requestData,
	}
}

// AverageHybridScore is the mean hybrid score of results, 0 when empty.
func AverageHybridScore(results []core.FusedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.HybridScore
	}
	return sum / float64(len(results))
}

func requestDataJSON(message string) (string, error) {
	return sonic.MarshalString(map[string]string{"message": message})
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
