package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentTypeAbstract marks a document chunk that summarizes its source.
// Abstracts are placed ahead of other passages when building answer context.
const ContentTypeAbstract = "abstract"

// DocumentMetadata describes where a passage came from.
// All fields are optional.
type DocumentMetadata struct {
	Source      string `json:"source,omitempty"`
	Page        string `json:"page,omitempty"`
	Chapter     string `json:"chapter,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Document is a passage of indexed text. Documents are immutable once loaded.
type Document struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// IndexedDocument is a Document together with its precomputed embedding.
// It is only used by the local vector index and the import path.
type IndexedDocument struct {
	Document
	Vector []float32 `json:"vector"`
}

// ScoredDocument is a Document returned by a single retriever.
// NormalizedScore is only meaningful after normalization.
type ScoredDocument struct {
	Document
	RawScore        float64
	NormalizedScore float64
}

// FusedResult is a Document ranked by the hybrid fusion of semantic and keyword scores.
// SemanticScore and KeywordScore are normalized to [0,1] and are 0 when the
// document was not returned by the corresponding retriever.
type FusedResult struct {
	Document
	SemanticScore    float64
	KeywordScore     float64
	HybridScore      float64
	RawSemanticScore float64
	RawKeywordScore  float64
	HasSemantic      bool
	HasKeyword       bool
}

// Intent is the retrieval strategy inferred from a query.
type Intent int

const (
	// IntentSpecific is a narrow lookup answered by a handful of passages.
	IntentSpecific Intent = iota + 1
	// IntentExhaustive asks to enumerate everything matching the query.
	IntentExhaustive
)

func (i Intent) String() string {
	switch i {
	case IntentSpecific:
		return "specific"
	case IntentExhaustive:
		return "exhaustive"
	default:
		return "unknown"
	}
}

// RetrievalRequest is the immutable description of one retrieval.
type RetrievalRequest struct {
	Query  string
	K      int
	Intent Intent
	TurnID string
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session groups the turns of one conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationTurn is a single message in a session. History is append-only.
type ConversationTurn struct {
	ID        ID        `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Search methods recorded on analytics events.
const (
	SearchMethodHybrid = "hybrid"
)

// AnalyticsEvent records the outcome of one answered question.
type AnalyticsEvent struct {
	ID                 ID            `json:"id"`
	UserID             string        `json:"user_id"`
	SessionID          string        `json:"session_id"`
	QueryText          string        `json:"query_text"`
	Keywords           []string      `json:"keywords,omitempty"`
	DocumentsRetrieved int           `json:"documents_retrieved"`
	AverageHybridScore float64       `json:"average_hybrid_score"`
	SearchMethod       string        `json:"search_method"`
	ResponseTime       time.Duration `json:"response_time"`
	CharCount          int           `json:"char_count"`
	ChunkCount         int           `json:"chunk_count"`
	Outcome            string        `json:"outcome"`
	CreatedAt          time.Time     `json:"created_at"`
	ExpiresAt          time.Time     `json:"expires_at"`
}

// ErrorRecord is an entry in the error log.
type ErrorRecord struct {
	ID          ID        `json:"id"`
	UserID      string    `json:"user_id"`
	ErrorType   string    `json:"error_type"`
	Message     string    `json:"message"`
	Endpoint    string    `json:"endpoint"`
	RequestData string    `json:"request_data"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Rating bounds for feedback. Ratings at or above PositiveRating count as satisfied.
const (
	MinRating      = 1
	MaxRating      = 5
	PositiveRating = 4
)

// Feedback is a user's rating of an assistant turn.
type Feedback struct {
	ID        ID        `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	TurnID    ID        `json:"turn_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Severity levels for notifications.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is raised by background anomaly scans.
type Notification struct {
	ID        ID        `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpoint records how far a background job has progressed.
type Checkpoint struct {
	Name      string    `json:"name"`
	LastRunAt time.Time `json:"last_run_at"`
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}
