package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"DF-FIDELITY/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFieldsRejectsOversizedPayloadLocally(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, WithMaxPayload(1024))

	_, err := client.DetectFields(context.Background(), make([]byte, 2048), "image/jpeg")
	require.Error(t, err)

	var serviceErr *errs.ExternalServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, errs.CodePayloadTooLarge, serviceErr.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests), "ceiling check must run before any network call")
}

func TestDetectFieldsSendsBase64Payload(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0x01, 0x02}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ai/detect-fields", r.URL.Path)

		var req struct {
			FileData string `json:"fileData"`
			MimeType string `json:"mimeType"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), req.FileData)
		assert.Equal(t, "image/jpeg", req.MimeType)

		json.NewEncoder(w).Encode(map[string]any{
			"suggestedTitle": "Invoice",
			"fields": []map[string]any{
				{"name": "Client Name", "type": "TEXT", "rect": map[string]float64{"ymin": 100, "xmin": 100, "ymax": 120, "xmax": 400}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	result, err := client.DetectFields(context.Background(), image, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "Invoice", result.SuggestedTitle)
	require.Len(t, result.Fields, 1)
	assert.Equal(t, "Client Name", result.Fields[0].Name)
	assert.True(t, result.Fields[0].Required)
}

func TestDetectFieldsTranslatesServiceFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errs.ServiceCode
	}{
		{"overloaded", http.StatusServiceUnavailable, `{"error":"model overloaded"}`, errs.CodeAIUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, errs.CodeAIUnavailable},
		{"bad request", http.StatusBadRequest, `{"error":"unsupported image"}`, errs.CodeAnalysisFailed},
		{"malformed body", http.StatusOK, `{"fields": not-json`, errs.CodeAnalysisFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, time.Second)
			_, err := client.DetectFields(context.Background(), []byte("img"), "image/png")
			require.Error(t, err)

			var serviceErr *errs.ExternalServiceError
			require.True(t, errors.As(err, &serviceErr), "expected ExternalServiceError, got %T", err)
			assert.Equal(t, tt.wantCode, serviceErr.Code)
		})
	}
}

func TestDetectFieldsUnreachableService(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)

	_, err := client.DetectFields(context.Background(), []byte("img"), "image/png")
	require.Error(t, err)

	var serviceErr *errs.ExternalServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, errs.CodeAIUnavailable, serviceErr.Code)
}

func TestSuggestMappingJoinsLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ai/suggest-mapping", r.URL.Path)

		var req struct {
			FieldList  string `json:"fieldList"`
			HeaderList string `json:"headerList"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Name, Amount", req.FieldList)
		assert.Equal(t, "full_name, amount_due, notes", req.HeaderList)

		json.NewEncoder(w).Encode(map[string]string{"Name": "full_name", "Amount": "amount_due"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	mapping, err := client.SuggestMapping(context.Background(), []string{"Name", "Amount"}, []string{"full_name", "amount_due", "notes"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Name": "full_name", "Amount": "amount_due"}, mapping)
}

func TestFillFormDegradesToEmptyOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	values := client.FillForm(context.Background(), "Invoice", []string{"Name"}, "fill it in")
	assert.Empty(t, values)
}
