// Package wire encodes the answer stream as newline-delimited JSON records.
//
// A stream is a chat id record, zero or more token records, and exactly one
// terminal record with "done": true. The Encoder refuses to write anything
// after the terminal record.
package wire

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// ContentType is the media type of an encoded stream.
const ContentType = "application/x-ndjson"

// Terminal error codes and messages.
const (
	ErrorSystemUnavailable = "system_unavailable"
	GenerationErrorMessage = "An error occurred while generating the response."
)

var (
	// ErrTerminated is returned when writing after the terminal record.
	ErrTerminated = errors.New("stream already terminated")
)

// ChatRecord opens the stream.
type ChatRecord struct {
	ChatID string `json:"chat_id"`
}

// TokenRecord carries one answer fragment.
type TokenRecord struct {
	Token string `json:"token"`
}

// DoneRecord terminates a stream that completed, possibly with a warning.
type DoneRecord struct {
	Done    bool    `json:"done"`
	Chunks  int     `json:"chunks"`
	Chars   int     `json:"chars"`
	Time    float64 `json:"time"`
	Warning string  `json:"warning,omitempty"`
}

// ErrorRecord terminates a stream that failed.
type ErrorRecord struct {
	Done        bool   `json:"done"`
	Error       string `json:"error"`
	ErrorType   string `json:"error_type,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	Partial     bool   `json:"partial"`
}

// UnavailableRecord terminates the fallback stream sent when retrieval is
// not ready.
type UnavailableRecord struct {
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

type flusher interface {
	Flush()
}

// Encoder writes records to w, flushing after each one when w supports it.
// It is safe for concurrent use.
type Encoder struct {
	mu         sync.Mutex
	w          io.Writer
	flusher    flusher
	terminated bool
	records    int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(flusher); ok {
		e.flusher = f
	}
	return e
}

// ChatID writes the opening record.
func (e *Encoder) ChatID(id string) error {
	return e.write(ChatRecord{ChatID: id}, false)
}

// Token writes one answer fragment.
func (e *Encoder) Token(text string) error {
	return e.write(TokenRecord{Token: text}, false)
}

// Done writes the terminal record of a completed stream.
func (e *Encoder) Done(chunks, chars int, elapsed time.Duration, warning string) error {
	return e.write(DoneRecord{
		Done:    true,
		Chunks:  chunks,
		Chars:   chars,
		Time:    Seconds(elapsed),
		Warning: warning,
	}, true)
}

// Failed writes the terminal record of a failed stream.
func (e *Encoder) Failed(errorType, userMessage string, partial bool) error {
	return e.write(ErrorRecord{
		Done:        true,
		Error:       GenerationErrorMessage,
		ErrorType:   errorType,
		UserMessage: userMessage,
		Partial:     partial,
	}, true)
}

// Unavailable writes the terminal record of the fallback stream.
func (e *Encoder) Unavailable() error {
	return e.write(UnavailableRecord{Done: true, Error: ErrorSystemUnavailable}, true)
}

// Terminated reports whether the terminal record has been written.
func (e *Encoder) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// Records returns the number of records written.
func (e *Encoder) Records() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.records
}

func (e *Encoder) write(record any, terminal bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return ErrTerminated
	}
	if terminal {
		// A failed write still ends the stream.
		e.terminated = true
	}

	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	e.records++
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Seconds rounds d to two decimal places of seconds.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
