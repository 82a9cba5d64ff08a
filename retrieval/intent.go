package retrieval

import (
	"strings"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// exhaustiveMarkers are matched as plain substrings of the lowercased query,
// so "call" and "small" also trigger exhaustive retrieval.
var exhaustiveMarkers = []string{
	"all", "list", "every", "give me all", "show me all",
	"how many", "what are all", "enumerate", "complete list",
}

// ClassifyIntent reports whether a query asks for every matching document
// or for the few most relevant ones.
func ClassifyIntent(query string) core.Intent {
	q := strings.ToLower(query)
	for _, marker := range exhaustiveMarkers {
		if strings.Contains(q, marker) {
			return core.IntentExhaustive
		}
	}
	return core.IntentSpecific
}
