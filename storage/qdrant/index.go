// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package qdrant serves a prebuilt Qdrant collection as a storage.VectorIndex
// over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/bytedance/sonic"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultTextField    = "text"
	defaultMetaField    = "metadata"
	defaultIDField      = "doc_id"
	maxErrorBodyPreview = 512
)

// Index is a read-only storage.VectorIndex backed by a Qdrant collection.
type Index struct {
	baseURL    string
	collection string
	apiKey     string
	textField  string
	metaField  string
	idField    string
	client     *http.Client
	logger     *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// WithAPIKey sets the api-key header sent with every request.
func WithAPIKey(key string) Option {
	return func(i *Index) error {
		i.apiKey = strings.TrimSpace(key)
		return nil
	}
}

// WithTimeout sets the HTTP client timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(i *Index) error {
		if d <= 0 {
			return fmt.Errorf("qdrant timeout must be positive, got %s", d)
		}
		i.client.Timeout = d
		return nil
	}
}

// WithPayloadFields sets the payload keys holding the passage text, its
// metadata object and the original document id.
func WithPayloadFields(text, metadata, id string) Option {
	return func(i *Index) error {
		if text != "" {
			i.textField = text
		}
		if metadata != "" {
			i.metaField = metadata
		}
		if id != "" {
			i.idField = id
		}
		return nil
	}
}

// NewIndex creates an Index for collection served at baseURL
// (for example http://localhost:6333).
func NewIndex(baseURL, collection string, opts ...Option) (*Index, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", storage.ErrInvalidQuery)
	}
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", storage.ErrInvalidQuery)
	}

	i := &Index{
		baseURL:    baseURL,
		collection: collection,
		textField:  defaultTextField,
		metaField:  defaultMetaField,
		idField:    defaultIDField,
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "qdrant-index", "collection", collection)
	return i, nil
}

// Close releases idle connections.
func (i *Index) Close() error {
	i.client.CloseIdleConnections()
	return nil
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type searchHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Result []searchHit `json:"result"`
	Status string      `json:"status"`
}

// Search returns up to k points nearest to vector, best first.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		return []core.ScoredDocument{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	req := searchRequest{Vector: vector, Limit: k, WithPayload: true}
	var resp searchResponse
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(i.collection))
	if err := i.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		i.logger.Error("qdrant search failed", "err", err)
		return nil, err
	}

	results := make([]core.ScoredDocument, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, core.ScoredDocument{
			Document: i.documentFromPayload(hit),
			RawScore: hit.Score,
		})
	}
	return results, nil
}

func (i *Index) documentFromPayload(hit searchHit) core.Document {
	var doc core.Document
	if v, ok := hit.Payload[i.idField].(string); ok {
		doc.ID = v
	}
	if v, ok := hit.Payload[i.textField].(string); ok {
		doc.Text = v
	}
	if m, ok := hit.Payload[i.metaField].(map[string]any); ok {
		doc.Metadata = core.MetadataFromMap(m)
	}
	if doc.ID == "" {
		doc.ID = fmt.Sprint(hit.ID)
	}
	return doc
}

func (i *Index) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		return fmt.Errorf("%w: %s %s returned %d: %s", storage.ErrIndexUnavailable, method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return nil
}
