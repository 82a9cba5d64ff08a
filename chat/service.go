// Package chat answers questions over the document index.
//
// Service ties retrieval, prompt assembly, the guarded answer stream and
// asynchronous persistence together for one request, writing the answer as
// NDJSON records.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/generation"
	"github.com/Devcavi19/adal-4naga-app/persistence"
	"github.com/Devcavi19/adal-4naga-app/prompt"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/Devcavi19/adal-4naga-app/wire"
)

// Service defaults.
const (
	DefaultFallbackMessage = "I apologize, but the AI system is currently unavailable. Please try again later."
	DefaultFallbackDelay   = 30 * time.Millisecond
	BlockedMessage         = "Sorry, I can't assist with that."
	Endpoint               = "/api/chat"

	maxTitle = 50
)

// Failure types recorded in the error log.
const (
	FailureRetrieval        = "retrieval_failure"
	FailurePartialRetrieval = "partial_retrieval"
	FailureCancelled        = "cancelled"
)

// Request is one question from a user.
type Request struct {
	UserID    string
	SessionID string
	Message   string
}

// Submitter accepts transcripts for persistence.
type Submitter interface {
	Submit(t persistence.Transcript) error
}

// Service answers questions. It is safe for concurrent use.
type Service struct {
	controller    *retrieval.Controller
	driver        *generation.Driver
	conversations storage.ConversationRepository
	analytics     storage.AnalyticsRepository
	sink          Submitter
	maxExchanges  int
	fallback      string
	fallbackDelay time.Duration
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSink sets where transcripts are submitted. Without one nothing is saved.
func WithSink(sink Submitter) Option {
	return func(s *Service) error {
		s.sink = sink
		return nil
	}
}

// WithAnalytics sets where feedback is stored. Without one SubmitFeedback
// returns ErrFeedbackUnavailable.
func WithAnalytics(analytics storage.AnalyticsRepository) Option {
	return func(s *Service) error {
		s.analytics = analytics
		return nil
	}
}

// WithHistory sets how many previous exchanges are sent to the model.
// Default is 5.
func WithHistory(maxExchanges int) Option {
	return func(s *Service) error {
		if maxExchanges < 0 {
			return fmt.Errorf("history size cannot be negative, got %d", maxExchanges)
		}
		s.maxExchanges = maxExchanges
		return nil
	}
}

// WithFallback sets the apology streamed while retrieval is not ready and
// the delay between its characters.
func WithFallback(message string, delay time.Duration) Option {
	return func(s *Service) error {
		if message != "" {
			s.fallback = message
		}
		s.fallbackDelay = delay
		return nil
	}
}

// NewService creates a Service.
func NewService(
	controller *retrieval.Controller,
	driver *generation.Driver,
	conversations storage.ConversationRepository,
	opts ...Option,
) (*Service, error) {
	if controller == nil {
		return nil, ErrControllerRequired
	}
	if driver == nil {
		return nil, ErrDriverRequired
	}
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	s := &Service{
		controller:    controller,
		driver:        driver,
		conversations: conversations,
		maxExchanges:  prompt.DefaultMaxExchanges,
		fallback:      DefaultFallbackMessage,
		fallbackDelay: DefaultFallbackDelay,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chat")
	return s, nil
}

// Validate checks a question before anything is written.
func (s *Service) Validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if !prompt.IsAllowed(message) {
		return ErrContentBlocked
	}
	return nil
}

// SessionTitle derives a session title from its first message.
func SessionTitle(message string) string {
	r := []rune(message)
	if len(r) <= maxTitle {
		return message
	}
	return string(r[:maxTitle]) + "..."
}

// OpenSession returns the session for req, creating one when req has no
// session id.
func (s *Service) OpenSession(ctx context.Context, req Request) (*core.Session, error) {
	if req.SessionID == "" {
		session, err := s.conversations.CreateSession(ctx, &core.Session{
			UserID: req.UserID,
			Title:  SessionTitle(req.Message),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chat session: %w", err)
		}
		s.logger.Info("created chat session", "session", session.ID, "user", req.UserID)
		return session, nil
	}

	session, err := s.conversations.GetSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load chat session: %w", err)
	}
	if session.UserID != req.UserID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Answer validates req, opens its session and streams the answer to w.
//
// Errors returned before the first record is written (validation, session)
// leave w untouched. Once streaming starts exactly one terminal record is
// written on every path and only write errors are returned.
func (s *Service) Answer(ctx context.Context, req Request, w io.Writer) error {
	if err := s.Validate(req.Message); err != nil {
		return err
	}
	session, err := s.OpenSession(ctx, req)
	if err != nil {
		return err
	}
	return s.Stream(ctx, session, req.Message, wire.NewEncoder(w))
}

// Stream writes the answer to question in session through enc.
func (s *Service) Stream(ctx context.Context, session *core.Session, question string, enc *wire.Encoder) (err error) {
	started := time.Now()
	logger := s.logger.With("session", session.ID)

	defer func() {
		if !enc.Terminated() {
			logger.Error("stream ended without terminal record")
			if ferr := enc.Failed(string(generation.CategoryGeneric), generation.CategoryGeneric.UserMessage(), false); ferr != nil && err == nil {
				err = ferr
			}
		}
	}()

	if err := enc.ChatID(session.ID); err != nil {
		return err
	}

	turns, herr := s.conversations.GetRecentTurns(ctx, session.ID, s.maxExchanges*2)
	if herr != nil {
		logger.Warn("failed to load history, answering without it", "err", herr)
		turns = nil
	}

	outcome, rerr := s.controller.Retrieve(ctx, question)
	if !outcome.Ready() {
		logger.Warn("retrieval not initialized, streaming fallback")
		return s.streamFallback(ctx, enc)
	}

	transcript := persistence.Transcript{
		UserID:    session.UserID,
		SessionID: session.ID,
		Question:  question,
		Results:   outcome.Results,
		StartedAt: started.UTC(),
		Endpoint:  Endpoint,
	}

	if rerr != nil {
		if len(outcome.Results) == 0 {
			logger.Error("retrieval failed", "err", rerr)
			transcript.Outcome = FailureRetrieval
			transcript.Failure = &persistence.Failure{Type: FailureRetrieval, Message: rerr.Error()}
			transcript.Elapsed = time.Since(started)
			s.submit(transcript)
			return enc.Failed(FailureRetrieval, generation.Classify(rerr).UserMessage(), false)
		}
		logger.Warn("retrieval partially failed, answering with remaining results", "err", rerr, "results", len(outcome.Results))
		transcript.Failure = &persistence.Failure{Type: FailurePartialRetrieval, Message: rerr.Error()}
	}

	passages := prompt.FormatResults(outcome.Results)
	if len(passages) > prompt.LargeContextChars {
		logger.Warn("large context", "chars", len(passages), "documents", len(outcome.Results))
	}
	history := prompt.FormatHistory(turns, s.maxExchanges)
	logger.Debug("answering",
		"intent", outcome.Intent.String(),
		"documents", len(outcome.Results),
		"history_turns", len(turns))

	stream := s.driver.Start(ctx, prompt.Build(question, passages, history))
	var werr error
	for token := range stream.Tokens() {
		if werr = enc.Token(token); werr != nil {
			break
		}
	}
	result := stream.Result()

	transcript.Answer = result.Answer
	transcript.Chunks = result.ChunkCount
	transcript.Chars = result.CharCount
	transcript.Outcome = result.Outcome()
	transcript.Elapsed = time.Since(started)

	var terr error
	if result.State == generation.StateCompleted {
		terr = enc.Done(result.ChunkCount, result.CharCount, result.Elapsed, string(result.Warning))
	} else {
		errorType := string(result.Category)
		message := result.Category.UserMessage()
		if result.Category == generation.CategoryNone {
			errorType = FailureCancelled
			message = generation.CategoryGeneric.UserMessage()
		}
		transcript.Failure = &persistence.Failure{Type: errorType, Message: errorMessage(result.Err)}
		terr = enc.Failed(errorType, message, result.Answer != "")
	}

	s.submit(transcript)

	if werr != nil {
		return werr
	}
	return terr
}

// Search runs a direct hybrid search. k <= 0 uses the default.
// A partial failure with surviving results is logged and not returned.
func (s *Service) Search(ctx context.Context, query string, k int) ([]core.FusedResult, error) {
	if err := s.Validate(query); err != nil {
		return nil, err
	}
	outcome, err := s.controller.Search(ctx, query, k)
	if !outcome.Ready() {
		return nil, ErrNotInitialized
	}
	if err != nil {
		if len(outcome.Results) == 0 {
			return nil, err
		}
		s.logger.Warn("search partially failed", "err", err, "results", len(outcome.Results))
	}
	return outcome.Results, nil
}

// Ready reports whether retrieval is initialized.
func (s *Service) Ready() bool {
	return s.controller.Ready()
}

// Sessions lists a user's sessions, most recent first.
func (s *Service) Sessions(ctx context.Context, userID string, limit int) ([]*core.Session, error) {
	return s.conversations.ListSessions(ctx, userID, limit)
}

// Turns returns the turns of a session owned by userID, oldest first.
func (s *Service) Turns(ctx context.Context, userID, sessionID string) ([]*core.ConversationTurn, error) {
	if _, err := s.OpenSession(ctx, Request{UserID: userID, SessionID: sessionID}); err != nil {
		return nil, err
	}
	return s.conversations.GetRecentTurns(ctx, sessionID, 0)
}

func (s *Service) streamFallback(ctx context.Context, enc *wire.Encoder) error {
	for _, r := range s.fallback {
		if err := enc.Token(string(r)); err != nil {
			return err
		}
		if s.fallbackDelay > 0 {
			select {
			case <-ctx.Done():
				return enc.Unavailable()
			case <-time.After(s.fallbackDelay):
			}
		}
	}
	return enc.Unavailable()
}

func (s *Service) submit(t persistence.Transcript) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Submit(t); err != nil {
		s.logger.Warn("transcript not persisted", "err", err, "session", t.SessionID)
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
