package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSClient stores fidelity masters, rendered page images, and bulk
// archives. Template rows keep object references only; bytes never live
// in the database.
type GCSClient struct {
	client     *storage.Client
	bucketName string
}

type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

func NewGCSClient(ctx context.Context, bucketName, credentialsPath string) (*GCSClient, error) {
	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (g *GCSClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	writer := obj.NewWriter(ctx)

	if contentType != "" {
		writer.ContentType = contentType
	}

	size, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to copy data to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, objectName),
		Size:       size,
	}, nil
}

func (g *GCSClient) UploadBytes(ctx context.Context, data []byte, objectName, contentType string) (*UploadResult, error) {
	return g.UploadFile(ctx, bytes.NewReader(data), objectName, contentType)
}

func (g *GCSClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	return obj.NewReader(ctx)
}

func (g *GCSClient) DeleteFile(ctx context.Context, objectName string) error {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	return obj.Delete(ctx)
}

func (g *GCSClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	return g.client.Bucket(g.bucketName).SignedURL(objectName, opts)
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

// MasterObjectName places one page's maximal-fidelity master image.
func MasterObjectName(templateID string, pageIndex int) string {
	return fmt.Sprintf("templates/%s/master_page_%d.png", templateID, pageIndex)
}

// SourceObjectName places the original uploaded source, kept for
// re-rendering.
func SourceObjectName(templateID string) string {
	return fmt.Sprintf("templates/%s/source", templateID)
}

// ArchiveObjectName places a completed bulk archive. The timestamp
// keeps reruns of the same template distinct.
func ArchiveObjectName(jobID string) string {
	return fmt.Sprintf("archives/%s/%d_bulk_export.zip", jobID, time.Now().Unix())
}

// ArtifactObjectName places a single generated document.
func ArtifactObjectName(documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%d_%s", documentID, time.Now().Unix(), filename)
}
