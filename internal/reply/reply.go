// Package reply parses the loose line-labeled format the text-generation
// backend is asked to produce. The backend is not schema-constrained, so
// every field is extracted independently and callers supply a default when
// a field is missing or mangled.
package reply

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// EmotionLabels is the closed emotion vocabulary shared by the summarizer
// and tagger prompts.
var EmotionLabels = []string{
	"neutral", "happy", "excited", "calm", "hopeful",
	"sad", "lonely", "anxious", "stressed", "angry",
}

var (
	fieldMu sync.RWMutex
	fieldRe = map[string]*regexp.Regexp{}
	listRe  = regexp.MustCompile(`\[([^\]]*)\]`)
)

func pattern(label string) *regexp.Regexp {
	fieldMu.RLock()
	re, ok := fieldRe[label]
	fieldMu.RUnlock()
	if ok {
		return re
	}
	re = regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(label) + `:\s*(.+?)\s*$`)
	fieldMu.Lock()
	fieldRe[label] = re
	fieldMu.Unlock()
	return re
}

// Field extracts the value of a line-anchored "LABEL: value" field.
// The second result reports whether the label was found with a non-empty
// value.
func Field(text, label string) (string, bool) {
	m := pattern(label).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return "", false
	}
	return v, true
}

// List extracts a bracket-delimited comma list such as "TAGS: [a, b]".
// Entries are trimmed and lowercased, empty entries dropped. Duplicates are
// preserved; deduplication is the caller's decision.
func List(text, label string) ([]string, bool) {
	raw, ok := Field(text, label)
	if !ok {
		return nil, false
	}
	m := listRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out, true
}

// Int extracts an integer field. Trailing prose after the number is
// tolerated ("INTENSITY: 7 out of 10").
func Int(text, label string) (int, bool) {
	raw, ok := Field(text, label)
	if !ok {
		return 0, false
	}
	if i := strings.IndexAny(raw, " \t"); i > 0 {
		raw = raw[:i]
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Clamp bounds v to the closed range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
