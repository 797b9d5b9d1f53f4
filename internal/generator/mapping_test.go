package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSuggester struct {
	mapping map[string]string
	err     error
}

func (s *stubSuggester) SuggestMapping(ctx context.Context, fieldNames, csvHeaders []string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.mapping, nil
}

func TestSuggestAlwaysCoversEveryField(t *testing.T) {
	assistant := NewMappingAssistant(&stubSuggester{mapping: map[string]string{"Name": "full_name"}})

	mapping := assistant.Suggest(context.Background(),
		[]string{"Name", "Amount", "Unmappable"},
		[]string{"full_name", "amount_due"})

	require.Len(t, mapping, 3, "one key per field, unmapped included")
	assert.Equal(t, "full_name", mapping["Name"])
	assert.Equal(t, "amount_due", mapping["Amount"], "heuristic backfills fields the remote omitted")
	assert.Equal(t, "", mapping["Unmappable"])
}

func TestSuggestDiscardsInventedHeaders(t *testing.T) {
	assistant := NewMappingAssistant(&stubSuggester{mapping: map[string]string{"Name": "does_not_exist"}})

	mapping := assistant.Suggest(context.Background(), []string{"Name"}, []string{"notes"})
	assert.Equal(t, "", mapping["Name"], "a suggested header missing from the CSV is discarded")
}

func TestSuggestResolvesCaseDifferences(t *testing.T) {
	assistant := NewMappingAssistant(&stubSuggester{mapping: map[string]string{"Name": "FULL_NAME"}})

	mapping := assistant.Suggest(context.Background(), []string{"Name"}, []string{"full_name"})
	assert.Equal(t, "full_name", mapping["Name"], "suggestions resolve to the canonical CSV header")
}

func TestSuggestFallsBackWhenRemoteFails(t *testing.T) {
	assistant := NewMappingAssistant(&stubSuggester{err: fmt.Errorf("gateway down")})

	mapping := assistant.Suggest(context.Background(),
		[]string{"Client Name", "Date"},
		[]string{"client_name", "delivery_date", "notes"})

	assert.Equal(t, "client_name", mapping["Client Name"])
	assert.Equal(t, "delivery_date", mapping["Date"], "substring match in CSV order")
}

func TestSuggestWithNoRemote(t *testing.T) {
	assistant := NewMappingAssistant(nil)

	mapping := assistant.Suggest(context.Background(), []string{"Amount Due"}, []string{"amount_due"})
	assert.Equal(t, "amount_due", mapping["Amount Due"])
}

func TestSuggestIsDeterministic(t *testing.T) {
	assistant := NewMappingAssistant(nil)
	fields := []string{"Name", "Date", "Amount"}
	headers := []string{"date_created", "name", "total_amount"}

	first := assistant.Suggest(context.Background(), fields, headers)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, assistant.Suggest(context.Background(), fields, headers))
	}
}

func TestHeuristicMatch(t *testing.T) {
	tests := []struct {
		field   string
		headers []string
		want    string
	}{
		{"Client Name", []string{"client_name", "name"}, "client_name"},
		{"Name", []string{"client_name", "surname"}, "client_name"},
		{"Date", []string{"notes", "amount"}, ""},
		{"", []string{"a"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, heuristicMatch(tt.field, tt.headers), "heuristicMatch(%q, %v)", tt.field, tt.headers)
	}
}
