package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	req := Build("What is ordinance 12?", "ctx block", "Human: hi\nAssistant: hello")

	assert.Equal(t, SystemInstruction, req.System)
	assert.Equal(t,
		"Human: hi\nAssistant: hello\n\nCurrent Question: What is ordinance 12?\n\nRelevant Context:\nctx block",
		req.Prompt)
}

func TestBuild_NoHistory(t *testing.T) {
	req := Build("q", "c", "")
	assert.True(t, strings.HasPrefix(req.Prompt, "\n\nCurrent Question: q"))
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"What are the zoning ordinances?", true},
		{"How to make a BOMB at home", false},
		{"list explosive materials", false},
		{"content about self-harm", false},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.question))
		})
	}
}
