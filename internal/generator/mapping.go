package generator

import (
	"context"
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

// MappingSuggester is the slice of the detection gateway's sibling
// mapping contract the assistant needs.
type MappingSuggester interface {
	SuggestMapping(ctx context.Context, fieldNames, csvHeaders []string) (map[string]string, error)
}

// MappingAssistant pairs template field names with CSV headers. Its
// output is advisory only: callers must allow manual override of every
// suggestion, since header names are natural language and matches are
// heuristic.
type MappingAssistant struct {
	remote MappingSuggester
}

func NewMappingAssistant(remote MappingSuggester) *MappingAssistant {
	return &MappingAssistant{remote: remote}
}

// Suggest maps every template field name to a CSV header or "". The
// result always carries one key per field name, never omitting
// unmapped fields. A remote suggestion naming a header that does not
// exist in the CSV is discarded. When the remote call fails the
// assistant degrades to its deterministic local heuristic, the
// documented fallback path; remote and fallback results are never mixed
// with the failure hidden.
func (a *MappingAssistant) Suggest(ctx context.Context, fieldNames, csvHeaders []string) map[string]string {
	var remote map[string]string
	if a.remote != nil {
		var err error
		remote, err = a.remote.SuggestMapping(ctx, fieldNames, csvHeaders)
		if err != nil {
			klog.Warningf("remote mapping suggestion failed, using local heuristic: %v", err)
			remote = nil
		}
	}

	mapping := make(map[string]string, len(fieldNames))
	for _, field := range fieldNames {
		header := canonicalHeader(remote[field], csvHeaders)
		if header == "" {
			header = heuristicMatch(field, csvHeaders)
		}
		mapping[field] = header
	}
	return mapping
}

// canonicalHeader resolves a suggested header against the actual CSV
// headers, tolerating case differences.
func canonicalHeader(suggested string, csvHeaders []string) string {
	if suggested == "" {
		return ""
	}
	for _, h := range csvHeaders {
		if h == suggested {
			return h
		}
	}
	for _, h := range csvHeaders {
		if strings.EqualFold(h, suggested) {
			return h
		}
	}
	return ""
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// heuristicMatch is deterministic: exact normalized match first, then
// the first header (in CSV order) containing or contained by the field
// name.
func heuristicMatch(field string, csvHeaders []string) string {
	want := normalizeName(field)
	if want == "" {
		return ""
	}
	for _, h := range csvHeaders {
		if normalizeName(h) == want {
			return h
		}
	}
	for _, h := range csvHeaders {
		got := normalizeName(h)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return h
		}
	}
	return ""
}
