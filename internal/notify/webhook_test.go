package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestWebhookSendMultipart(t *testing.T) {
	t.Parallel()

	var gotContent string
	var gotFiles map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotContent = r.FormValue("content")
		gotFiles = map[string]string{}
		for field, headers := range r.MultipartForm.File {
			f, err := headers[0].Open()
			if err != nil {
				t.Errorf("opening part %s: %v", field, err)
				continue
			}
			b, _ := io.ReadAll(f)
			f.Close()
			gotFiles[field] = string(b)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	logPath := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(logPath, []byte("log line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wh := NewWebhook(srv.URL)
	if err := wh.Send(context.Background(), "Profile 'alice' finished.", []string{logPath}); err != nil {
		t.Fatal(err)
	}

	if gotContent != "Profile 'alice' finished." {
		t.Errorf("content = %q", gotContent)
	}
	if gotFiles["file[0]"] != "log line\n" {
		t.Errorf("file[0] = %q", gotFiles["file[0]"])
	}
}

func TestWebhookSendErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL)
	if err := wh.Send(context.Background(), "hello", nil); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
