package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/bytedance/sonic"
)

// explainMonitor prints each retrieval stage.
type explainMonitor struct {
	w io.Writer
}

var _ retrieval.FusionMonitor = (*explainMonitor)(nil)

func newExplainMonitor(w io.Writer) *explainMonitor {
	return &explainMonitor{w: w}
}

func (m *explainMonitor) Start(query string, k int) {
	fmt.Fprintf(m.w, "query %q, k=%d\n", query, k)
}

func (m *explainMonitor) AfterSemanticSearch(results []core.ScoredDocument, err error) {
	m.stage("semantic", results, err)
}

func (m *explainMonitor) AfterKeywordSearch(results []core.ScoredDocument, err error) {
	m.stage("keyword", results, err)
}

func (m *explainMonitor) Merged(candidates int) {
	fmt.Fprintf(m.w, "merged: %d candidates\n", candidates)
}

func (m *explainMonitor) Finish(results []core.FusedResult) {
	fmt.Fprintf(m.w, "fused: %d results\n", len(results))
}

func (m *explainMonitor) stage(name string, results []core.ScoredDocument, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "%s: failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(m.w, "%s: %d hits\n", name, len(results))
	for _, r := range results {
		fmt.Fprintf(m.w, "  %-24s raw %0.4f\n", r.ID, r.RawScore)
	}
}

// record is the union of every NDJSON record the chat service writes.
type record struct {
	ChatID      string  `json:"chat_id"`
	Token       *string `json:"token"`
	Done        bool    `json:"done"`
	Chunks      int     `json:"chunks"`
	Time        float64 `json:"time"`
	Warning     string  `json:"warning"`
	Error       string  `json:"error"`
	UserMessage string  `json:"user_message"`
}

// textRenderer turns the NDJSON answer stream into plain text.
type textRenderer struct {
	w       io.Writer
	pending []byte
}

func newTextRenderer(w io.Writer) *textRenderer {
	return &textRenderer{w: w}
}

func (r *textRenderer) Write(p []byte) (int, error) {
	r.pending = append(r.pending, p...)
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := r.pending[:i]
		r.pending = r.pending[i+1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := r.render(line); err != nil {
			return 0, err
		}
	}
}

func (r *textRenderer) render(line []byte) error {
	var rec record
	if err := sonic.Unmarshal(line, &rec); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	var err error
	switch {
	case rec.Token != nil:
		_, err = io.WriteString(r.w, *rec.Token)
	case rec.ChatID != "":
		_, err = fmt.Fprintf(r.w, "[chat %s]\n", rec.ChatID)
	case rec.Done && rec.Error != "" && rec.UserMessage != "":
		_, err = fmt.Fprintf(r.w, "\n\n%s\n", rec.UserMessage)
	case rec.Done && rec.Error != "":
		_, err = fmt.Fprintf(r.w, "\n\n(%s)\n", rec.Error)
	case rec.Done:
		_, err = fmt.Fprintf(r.w, "\n\n(%d chunks in %.2fs)\n", rec.Chunks, rec.Time)
		if err == nil && rec.Warning != "" {
			_, err = fmt.Fprintf(r.w, "warning: %s\n", rec.Warning)
		}
	}
	return err
}
