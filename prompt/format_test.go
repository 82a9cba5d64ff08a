package prompt

import (
	"strings"
	"testing"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"", "Document"},
		{"docs/Ordno-2023-05.pdf", "Ordinance No. 2023 05"},
		{`C:\data\Ordno-2019_114.pdf`, "Ordinance No. 2019 114"},
		{"annual_report-2022.txt", "annual report 2022"},
		{"README", "README"},
		{"archive.tar.gz", "archive.tar"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.source))
		})
	}
}

func TestCitation(t *testing.T) {
	meta := core.DocumentMetadata{
		Source:      "docs/Ordno-2023-05.pdf",
		Page:        "3",
		ContentType: "abstract",
		Chapter:     "2",
	}
	assert.Equal(t, "[Ordinance No. 2023 05 p.3 (abstract) Ch.2]", Citation(meta))

	meta.URL = "https://naga.gov.ph/o.pdf"
	assert.Equal(t,
		`<a href="https://naga.gov.ph/o.pdf" target="_blank">Ordinance No. 2023 05 p.3 (abstract) Ch.2</a>`,
		Citation(meta))

	assert.Equal(t, "[Document]", Citation(core.DocumentMetadata{}))
}

func TestFormatDocuments_AbstractsFirst(t *testing.T) {
	docs := []core.Document{
		{Text: "body one", Metadata: core.DocumentMetadata{Source: "a.pdf"}},
		{Text: "abstract one", Metadata: core.DocumentMetadata{Source: "b.pdf", ContentType: core.ContentTypeAbstract}},
		{Text: "body two", Metadata: core.DocumentMetadata{Source: "c.pdf"}},
		{Text: "abstract two", Metadata: core.DocumentMetadata{Source: "d.pdf", ContentType: core.ContentTypeAbstract}},
	}

	out := FormatDocuments(docs)
	blocks := strings.Split(out, "\n\n")
	assert.Equal(t, []string{
		"abstract one\n[b (abstract)]",
		"abstract two\n[d (abstract)]",
		"body one\n[a]",
		"body two\n[c]",
	}, blocks)
}

func TestFormatDocuments_Empty(t *testing.T) {
	assert.Equal(t, "", FormatDocuments(nil))
}

func TestFormatResults(t *testing.T) {
	results := []core.FusedResult{
		{Document: core.Document{Text: "x", Metadata: core.DocumentMetadata{Source: "x.pdf"}}, HybridScore: 0.9},
	}
	assert.Equal(t, "x\n[x]", FormatResults(results))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "", FormatHistory(nil, 5))

	var turns []*core.ConversationTurn
	for i := range 12 {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		turns = append(turns, &core.ConversationTurn{Role: role, Text: string(rune('a' + i))})
	}

	out := FormatHistory(turns, 2)
	assert.Equal(t, "Human: i\nAssistant: j\nHuman: k\nAssistant: l", out)

	assert.Equal(t, "", FormatHistory(turns, 0))
}

func TestFormatHistory_Truncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	out := FormatHistory([]*core.ConversationTurn{{Role: core.RoleAssistant, Text: long}}, 5)
	assert.Equal(t, "Assistant: "+strings.Repeat("x", 500)+"...", out)

	exact := strings.Repeat("y", 500)
	out = FormatHistory([]*core.ConversationTurn{{Role: core.RoleUser, Text: exact}}, 5)
	assert.Equal(t, "Human: "+exact, out)
}
