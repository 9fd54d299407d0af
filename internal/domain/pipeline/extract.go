package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var greedyObjectRe = regexp.MustCompile("(?s)\\{.*\\}")

// Extract attempts to decode v from raw text using three tiers, in order:
// a strict JSON parse of the whole string, a fenced ```json code block,
// and finally a greedy {...} regex match (spec §4.C response parsing).
// Returns an error only once all three tiers have failed.
func Extract(raw string, v any) error {
	raw = strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}

	if m := greedyObjectRe.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("unparseable pipeline response after strict/fenced/greedy extraction")
}
