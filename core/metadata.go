package core

import (
	"fmt"
	"strconv"
)

// MetadataFromMap builds DocumentMetadata from loosely typed key/value pairs
// such as a vector store payload or a corpus line. Numeric values (a page
// number stored as 12 or 12.0) are rendered without a fractional part.
// Unknown keys are ignored.
func MetadataFromMap(m map[string]any) DocumentMetadata {
	return DocumentMetadata{
		Source:      metadataString(m["source"]),
		Page:        metadataString(m["page"]),
		Chapter:     metadataString(m["chapter"]),
		ContentType: metadataString(m["content_type"]),
		URL:         metadataString(m["url"]),
	}
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
