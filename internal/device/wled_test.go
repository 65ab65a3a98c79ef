package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchInfoParsesMatrixAndFS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leds":{"matrix":{"w":32,"h":16}},"fs":{"t":1000,"u":400}}`))
	}))
	defer srv.Close()

	c := NewWLEDClient(strings.TrimPrefix(srv.URL, "http://"))
	info, err := c.FetchInfo(context.Background())
	if err != nil {
		t.Fatalf("FetchInfo: %v", err)
	}
	if info.Leds.Matrix.W != 32 || info.Leds.Matrix.H != 16 {
		t.Fatalf("unexpected matrix size: %+v", info.Leds.Matrix)
	}
	if info.FreeBytes() != 600 {
		t.Fatalf("expected 600 free bytes, got %d", info.FreeBytes())
	}
}

func TestExistsReturnsTrueOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWLEDClient(strings.TrimPrefix(srv.URL, "http://"))
	ok, err := c.Exists(context.Background(), "preset.gif")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected Exists to report true on 200")
	}
}

func TestUploadRejectsOversizedFilename(t *testing.T) {
	c := NewWLEDClient("127.0.0.1")
	err := c.Upload(context.Background(), strings.Repeat("a", 40)+".gif", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error for filename exceeding 30 characters")
	}
}

func TestSetLivePostsExpectedBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWLEDClient(strings.TrimPrefix(srv.URL, "http://"))
	if err := c.SetLive(context.Background(), true, true); err != nil {
		t.Fatalf("SetLive: %v", err)
	}
	if !strings.Contains(gotBody, `"live":true`) || !strings.Contains(gotBody, `"on":true`) {
		t.Fatalf("unexpected request body: %s", gotBody)
	}
}
