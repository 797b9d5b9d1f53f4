// Package ai is the request/response adapter to the external
// recognition service. It owns the only explicit timeout in the system
// and translates every transport failure into the errs taxonomy; raw
// HTTP errors never cross this boundary. Calls are at-most-once: the
// service may be billed per request, so there are no retries.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"

	"k8s.io/klog/v2"
)

// DefaultMaxPayload caps the image payload sent for analysis. The
// remote service fails opaquely on oversized input, so the check runs
// locally before any network call.
const DefaultMaxPayload = 10 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxPayload int
}

type Option func(*Client)

func WithMaxPayload(n int) Option {
	return func(c *Client) { c.maxPayload = n }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectionResult is the gateway's normalized view of a detection
// response. Fields have already passed the parse-and-reject step.
type DetectionResult struct {
	SuggestedTitle string                 `json:"suggestedTitle"`
	Fields         []models.TemplateField `json:"fields"`
}

type detectRequest struct {
	FileData string `json:"fileData"`
	MimeType string `json:"mimeType"`
}

// DetectFields sends one page image for field detection. The caller is
// responsible for downsizing the image first; payloads over the ceiling
// fail fast locally with PAYLOAD_TOO_LARGE.
func (c *Client) DetectFields(ctx context.Context, imageData []byte, mimeType string) (*DetectionResult, error) {
	if len(imageData) > c.maxPayload {
		return nil, errs.NewServiceError(errs.CodePayloadTooLarge,
			fmt.Sprintf("analysis image is %d bytes, ceiling is %d; use a smaller file or lower resolution", len(imageData), c.maxPayload), nil)
	}

	body := detectRequest{
		FileData: base64.StdEncoding.EncodeToString(imageData),
		MimeType: mimeType,
	}

	var raw rawDetectionResponse
	if err := c.post(ctx, "/ai/detect-fields", body, &raw); err != nil {
		return nil, err
	}

	result := coerceDetection(&raw)
	klog.V(4).Infof("field detection returned %d usable fields (title %q)", len(result.Fields), result.SuggestedTitle)
	return result, nil
}

type mappingRequest struct {
	FieldList  string `json:"fieldList"`
	HeaderList string `json:"headerList"`
}

// SuggestMapping asks the service's sibling mapping contract to pair
// template field names with CSV headers. The raw response may omit
// fields or invent headers; normalization is the caller's concern.
func (c *Client) SuggestMapping(ctx context.Context, fieldNames, csvHeaders []string) (map[string]string, error) {
	body := mappingRequest{
		FieldList:  strings.Join(fieldNames, ", "),
		HeaderList: strings.Join(csvHeaders, ", "),
	}

	var raw map[string]any
	if err := c.post(ctx, "/ai/suggest-mapping", body, &raw); err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(raw))
	for field, header := range raw {
		if s, ok := header.(string); ok {
			mapping[field] = strings.TrimSpace(s)
		}
	}
	return mapping, nil
}

type fillRequest struct {
	TemplateName string `json:"templateName"`
	FieldList    string `json:"fieldList"`
	Instruction  string `json:"instruction"`
}

// FillForm asks the service to propose values for the given field names
// from a free-text instruction. A failure degrades to an empty map so
// the user always retains manual control.
func (c *Client) FillForm(ctx context.Context, templateName string, fieldNames []string, instruction string) map[string]string {
	body := fillRequest{
		TemplateName: templateName,
		FieldList:    strings.Join(fieldNames, ", "),
		Instruction:  instruction,
	}

	var raw map[string]any
	if err := c.post(ctx, "/ai/fill-form", body, &raw); err != nil {
		klog.Warningf("AI fill failed, returning empty result: %v", err)
		return map[string]string{}
	}

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		if s, ok := v.(string); ok {
			values[name] = s
		}
	}
	return values
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.NewServiceError(errs.CodeAnalysisFailed, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.NewServiceError(errs.CodeAIUnavailable, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.NewServiceError(errs.CodeAIUnavailable, "recognition service unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.NewServiceError(errs.CodeAIUnavailable, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var remote struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &remote)
		msg := remote.Error
		if msg == "" {
			msg = fmt.Sprintf("recognition service returned status %d", resp.StatusCode)
		}
		code := errs.CodeAnalysisFailed
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
			code = errs.CodeAIUnavailable
		}
		return errs.NewServiceError(code, msg, nil)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errs.NewServiceError(errs.CodeAnalysisFailed, "recognition service returned malformed JSON", err)
	}
	return nil
}
