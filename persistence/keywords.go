package persistence

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultKeywordCount is the number of keywords stored per analytics event.
const DefaultKeywordCount = 10

var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true, "all": true,
	"also": true, "am": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "because": true, "been": true, "before": true,
	"being": true, "below": true, "between": true, "both": true, "but": true, "by": true,
	"can": true, "could": true, "did": true, "do": true, "does": true, "doing": true,
	"down": true, "during": true, "each": true, "few": true, "for": true, "from": true,
	"further": true, "give": true, "had": true, "has": true, "have": true, "having": true,
	"he": true, "her": true, "here": true, "hers": true, "him": true, "his": true,
	"how": true, "however": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "itself": true, "just": true, "list": true, "many": true,
	"me": true, "more": true, "most": true, "much": true, "my": true, "no": true,
	"nor": true, "not": true, "now": true, "of": true, "off": true, "on": true,
	"once": true, "only": true, "or": true, "other": true, "our": true, "ours": true,
	"out": true, "over": true, "own": true, "please": true, "same": true, "she": true,
	"should": true, "show": true, "so": true, "some": true, "such": true, "tell": true,
	"than": true, "that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true, "through": true,
	"to": true, "too": true, "under": true, "until": true, "up": true, "us": true,
	"very": true, "was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "who": true, "whom": true, "why": true,
	"will": true, "with": true, "would": true, "you": true, "your": true, "yours": true,
}

// tokenizeAndFilter splits text into lowercase words of two or more
// letters or digits and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 || stopWords[word] {
			continue
		}
		filtered = append(filtered, word)
	}
	return filtered
}

// ExtractKeywords returns up to n unigrams and bigrams of non-stop-words
// from text, most frequent first. Ties keep first-appearance order.
func ExtractKeywords(text string, n int) []string {
	if n <= 0 || len(strings.TrimSpace(text)) < 3 {
		return nil
	}

	words := tokenizeAndFilter(text)
	if len(words) == 0 {
		return nil
	}

	type term struct {
		text  string
		count int
		first int
	}
	terms := make(map[string]*term)
	var order []*term
	add := func(text string) {
		if t, ok := terms[text]; ok {
			t.count++
			return
		}
		t := &term{text: text, count: 1, first: len(order)}
		terms[text] = t
		order = append(order, t)
	}

	for i, word := range words {
		add(word)
		if i > 0 {
			add(words[i-1] + " " + word)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > n {
		order = order[:n]
	}
	keywords := make([]string, len(order))
	for i, t := range order {
		keywords[i] = t.text
	}
	return keywords
}
