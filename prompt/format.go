// Package prompt renders retrieved documents and conversation history into
// the generation request sent to the chat model.
package prompt

import (
	"fmt"
	"path"
	"strings"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// DefaultMaxExchanges is the number of user/assistant exchanges kept in history.
const DefaultMaxExchanges = 5

// maxHistoryMessage bounds each history message in characters.
const maxHistoryMessage = 500

var titleReplacer = strings.NewReplacer("-", " ", "_", " ")

// FormatDocuments renders documents as context blocks separated by blank
// lines. Abstracts come first, then everything else, each group in input order.
func FormatDocuments(docs []core.Document) string {
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Metadata.ContentType == core.ContentTypeAbstract {
			blocks = append(blocks, formatDocument(doc))
		}
	}
	for _, doc := range docs {
		if doc.Metadata.ContentType != core.ContentTypeAbstract {
			blocks = append(blocks, formatDocument(doc))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// FormatResults is FormatDocuments over fused results.
func FormatResults(results []core.FusedResult) string {
	docs := make([]core.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return FormatDocuments(docs)
}

func formatDocument(doc core.Document) string {
	return doc.Text + "\n" + Citation(doc.Metadata)
}

// Citation renders the source label of a document: a link opening in a new
// tab when a URL is known, else the label in brackets.
func Citation(meta core.DocumentMetadata) string {
	parts := []string{Title(meta.Source)}
	if meta.Page != "" {
		parts = append(parts, "p."+meta.Page)
	}
	if meta.ContentType != "" {
		parts = append(parts, "("+meta.ContentType+")")
	}
	if meta.Chapter != "" {
		parts = append(parts, "Ch."+meta.Chapter)
	}
	label := strings.Join(parts, " ")

	if meta.URL != "" {
		return fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, meta.URL, label)
	}
	return "[" + label + "]"
}

// Title derives a human readable title from a source file path, so
// "docs\Ordno-2023-05.pdf" becomes "Ordinance No. 2023 05".
func Title(source string) string {
	if source == "" {
		return "Document"
	}
	base := path.Base(strings.ReplaceAll(source, `\`, "/"))
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	base = strings.ReplaceAll(base, "Ordno-", "Ordinance No. ")
	return titleReplacer.Replace(base)
}

// FormatHistory renders the last maxExchanges exchanges, oldest first, as
// "Human: ..." and "Assistant: ..." lines. Long messages are truncated.
func FormatHistory(turns []*core.ConversationTurn, maxExchanges int) string {
	if len(turns) == 0 || maxExchanges <= 0 {
		return ""
	}
	if limit := maxExchanges * 2; len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "Assistant"
		if turn.Role == core.RoleUser {
			speaker = "Human"
		}
		lines = append(lines, speaker+": "+truncate(turn.Text, maxHistoryMessage))
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to n characters and appends "..." when it was longer.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
