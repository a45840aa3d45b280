package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Webhook posts messages to a Discord-compatible webhook URL.
// Attachments are uploaded as multipart file parts alongside the content.
type Webhook struct {
	url  string
	http *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, http: &http.Client{Timeout: 30 * time.Second}}
}

func (w *Webhook) Send(ctx context.Context, text string, attachments []string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if text != "" {
		if err := mw.WriteField("content", text); err != nil {
			return err
		}
	}
	for i, path := range attachments {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", path, err)
		}
		part, err := mw.CreateFormFile(fmt.Sprintf("file[%d]", i), filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("attachment %s: %w", path, err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
