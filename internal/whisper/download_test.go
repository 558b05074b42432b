package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestModelURL(t *testing.T) {
	want := "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin"
	if got := modelURL("base"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDownloadModel(t *testing.T) {
	payload := []byte("ggml model bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models", "ggml-tiny.bin")
	if err := downloadModel(context.Background(), srv.URL, "tiny", dest, zerolog.Nop()); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("unexpected file contents %q", got)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be removed")
	}
}

func TestDownloadModelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "ggml-tiny.bin")
	if err := downloadModel(context.Background(), srv.URL, "tiny", dest, zerolog.Nop()); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no model file should be left behind")
	}
}
