package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Storage wraps the Supabase Storage API for one bucket. It shares the
// parent client's HTTP transport and credentials.
type Storage struct {
	client *Client
	bucket string
}

// NewStorage creates a Storage adapter for the given bucket.
func NewStorage(client *Client, bucket string) *Storage {
	return &Storage{client: client, bucket: bucket}
}

// Upload stores a file at path inside the bucket.
func (s *Storage) Upload(ctx context.Context, path, mimeType string, data []byte) error {
	ctx, span := tracer.Start(ctx, "Storage.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.path", path),
		attribute.Int("storage.size", len(data)),
	)

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("apikey", s.client.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.client.serviceRoleKey))
	req.Header.Set("Content-Type", mimeType)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.client.logger.Error("storage: upload failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		s.client.logger.Warn("storage: upload non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("storage upload returned %d: %s", resp.StatusCode, string(body))
	}

	s.client.logger.Debug("storage: upload OK", zap.String("path", path))
	return nil
}

// Remove deletes a file from the bucket.
func (s *Storage) Remove(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Storage.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("storage.path", path))

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("apikey", s.client.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.client.serviceRoleKey))

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.client.logger.Error("storage: remove failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage remove returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// PublicURL returns the public download URL for a stored file.
func (s *Storage) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.baseURL, s.bucket, path)
}
