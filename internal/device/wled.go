package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ledcast/caster/internal/httputil"
)

// WLEDClient talks to a WLED device's JSON HTTP API (spec.md §6), used
// during a cast's Opening phase to auto-size the matrix and grab "live"
// control, and by C14 to stage a file for the record sink's optional
// device-side playback. Built on httputil.Do — the same retry/backoff
// helper the teacher uses for its agent-to-server calls.
type WLEDClient struct {
	addr   string
	client *http.Client
	retry  httputil.RetryConfig
}

// NewWLEDClient targets the WLED device at addr (bare IPv4, port 80 assumed).
func NewWLEDClient(addr string) *WLEDClient {
	return &WLEDClient{
		addr:   addr,
		client: &http.Client{Timeout: 1 * time.Second}, // spec.md §5: WLED negotiation timeout 1s
		retry:  httputil.RetryConfig{MaxRetries: 1, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2, JitterFrac: 0.2},
	}
}

func (w *WLEDClient) url(path string) string {
	return fmt.Sprintf("http://%s%s", w.addr, path)
}

// Info is the subset of GET /json/info this system cares about.
type Info struct {
	Leds struct {
		Matrix struct {
			W int `json:"w"`
			H int `json:"h"`
		} `json:"matrix"`
	} `json:"leds"`
	FS struct {
		Total int `json:"t"`
		Used  int `json:"u"`
	} `json:"fs"`
}

// FetchInfo reads GET /json/info and returns matrix size and filesystem
// free-space fields.
func (w *WLEDClient) FetchInfo(ctx context.Context) (*Info, error) {
	resp, err := httputil.Do(ctx, w.client, http.MethodGet, w.url("/json/info"), nil, nil, w.retry)
	if err != nil {
		return nil, fmt.Errorf("wled %s: fetch info: %w", w.addr, err)
	}
	defer resp.Body.Close()

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("wled %s: decode info: %w", w.addr, err)
	}
	return &info, nil
}

// FreeBytes returns the device's free filesystem space, for the upload-size
// guard ahead of Upload (supplemented from original_source: the Python
// implementation checks `fs.t - fs.u` before pushing a GIF).
func (i *Info) FreeBytes() int { return i.FS.Total - i.FS.Used }

// SetLive grabs or releases control of the device (POST /json {on, live}).
func (w *WLEDClient) SetLive(ctx context.Context, on, live bool) error {
	body, err := json.Marshal(map[string]bool{"on": on, "live": live})
	if err != nil {
		return err
	}
	headers := http.Header{"Content-Type": []string{"application/json"}}
	resp, err := httputil.Do(ctx, w.client, http.MethodPost, w.url("/json"), body, headers, w.retry)
	if err != nil {
		return fmt.Errorf("wled %s: set live: %w", w.addr, err)
	}
	resp.Body.Close()
	return nil
}

// Exists performs HEAD /<filename> to check whether a file is already on
// the device's filesystem.
func (w *WLEDClient) Exists(ctx context.Context, filename string) (bool, error) {
	resp, err := httputil.Do(ctx, w.client, http.MethodHead, w.url("/"+filename), nil, nil, w.retry)
	if err != nil {
		return false, fmt.Errorf("wled %s: head %s: %w", w.addr, filename, err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// maxFilenameLen matches WLED's firmware-enforced filename budget.
const maxFilenameLen = 30

// Upload pushes data as filename via multipart POST /upload.
func (w *WLEDClient) Upload(ctx context.Context, filename string, data io.Reader) error {
	if len(filename) > maxFilenameLen {
		return fmt.Errorf("wled %s: filename %q exceeds %d-character budget", w.addr, filename, maxFilenameLen)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	headers := http.Header{"Content-Type": []string{mw.FormDataContentType()}}
	resp, err := httputil.Do(ctx, w.client, http.MethodPost, w.url("/upload"), buf.Bytes(), headers, w.retry)
	if err != nil {
		return fmt.Errorf("wled %s: upload %s: %w", w.addr, filename, err)
	}
	resp.Body.Close()
	return nil
}
