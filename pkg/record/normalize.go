package record

import (
	"encoding/json"
	"fmt"
)

// TruncationPlaceholder replaces any value whose serialized form exceeds the
// caller's character limit.
const TruncationPlaceholder = "<suppressed due to excessive length>"

// Normalize converts an arbitrary value into something that is guaranteed to
// survive JSON encoding. Values that encode natively are kept verbatim (as a
// raw message, so re-encoding is stable); anything else falls back to its
// debug representation. Either way, a form longer than charLimit characters
// is replaced with TruncationPlaceholder. A charLimit <= 0 disables the limit.
func Normalize(v any, charLimit int) any {
	b, err := json.Marshal(v)
	if err == nil {
		if charLimit > 0 && len(b) > charLimit {
			return TruncationPlaceholder
		}
		return json.RawMessage(b)
	}

	s := fmt.Sprintf("%#v", v)
	if charLimit > 0 && len(s) > charLimit {
		return TruncationPlaceholder
	}
	return s
}
