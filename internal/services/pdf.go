package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
	"k8s.io/klog/v2"
)

// PDFService converts generated Word-compatible HTML documents to PDF
// through a Gotenberg instance. Conversion is best effort with retries;
// document layout is Gotenberg's concern, not ours.
type PDFService struct {
	client  *gotenberg.Client
	timeout time.Duration
}

func NewPDFService(gotenbergURL string, timeout time.Duration) (*PDFService, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &PDFService{client: client, timeout: timeout}, nil
}

// ConvertDocToPDF converts a .doc (HTML envelope) payload to PDF.
func (s *PDFService) ConvertDocToPDF(ctx context.Context, docData []byte, filename string) ([]byte, error) {
	body, err := s.convertWithRetry(ctx, docData, filename, 3)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	pdf, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted document: %w", err)
	}
	return pdf, nil
}

func (s *PDFService) convertWithRetry(ctx context.Context, docData []byte, filename string, maxRetries int) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		convertCtx, cancel := context.WithTimeout(ctx, s.timeout)

		// A fresh reader per attempt: a failed send may have consumed it.
		doc, err := document.FromReader(filename, bytes.NewReader(docData))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create document from reader: %w", err)
		}

		req := gotenberg.NewLibreOfficeRequest(doc)

		resp, err := s.client.Send(convertCtx, req)
		if err == nil {
			cancel()
			return resp.Body, nil
		}
		cancel()

		lastErr = err
		klog.Warningf("PDF conversion attempt %d/%d failed: %v", attempt, maxRetries, err)

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", maxRetries, lastErr)
}

func (s *PDFService) Close() error {
	// The underlying HTTP client needs no explicit teardown.
	return nil
}
