// Package record implements the C14 record sink: a side-channel tap that
// optionally persists a cast's processed frame stream to local disk or a
// cloud object store, grounded on the teacher's internal/backup package
// (BackupManager/Snapshot/BackupProvider) — generalized from scheduled
// filesystem snapshots to a continuously rotating frame segment stream.
package record

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("record")

// Sink is the upload surface a Recorder flushes closed segments to. Every
// concrete sink (local disk, S3, Azure Blob, GCS, B2, WLED device) speaks
// this one interface, matching the teacher's BackupProvider shape
// (Upload/Download/List/Delete) trimmed to what a write-only, append-only
// segment stream needs.
type Sink interface {
	Upload(ctx context.Context, key string, data []byte) error
	Close() error
}

// Config mirrors config.RecordConfig without importing internal/config,
// so this package stays usable from a standalone CLI subcommand too.
type Config struct {
	Sink           string // none|local|s3|azureblob|gcs|b2|device
	Path           string
	Bucket         string
	Region         string
	Encode         string // raw|h264
	SegmentSeconds int
}

const flushChanDepth = 4

// Recorder accumulates processed frames into time-bounded segments and
// flushes each closed segment to its Sink on its own goroutine, fed by a
// small buffered channel (spec.md §5 EXPANSION: "a full channel drops the
// newest frame for recording purposes only — recording is lossy by design,
// never pixels-to-wire"). It satisfies cast.Recorder structurally.
type Recorder struct {
	sink     Sink
	castName string
	encoder  frameEncoder
	segment  time.Duration

	frames chan frame.Frame
	done   chan struct{}

	mu      sync.Mutex
	buf     bytes.Buffer
	started time.Time
	seq     int
}

// New builds a Recorder for castName from cfg. destinations is the cast's
// resolved destination list, consulted only when cfg.Sink == "device".
func New(cfg Config, castName string, destinations []string) (*Recorder, error) {
	if strings.EqualFold(cfg.Sink, "none") || cfg.Sink == "" {
		return nil, fmt.Errorf("record: sink %q is not enabled", cfg.Sink)
	}

	sink, err := newSink(cfg, destinations)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	enc, err := newEncoder(cfg.Encode)
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("record: %w", err)
	}

	segSeconds := cfg.SegmentSeconds
	if segSeconds <= 0 {
		segSeconds = 30
	}

	r := &Recorder{
		sink:     sink,
		castName: castName,
		encoder:  enc,
		segment:  time.Duration(segSeconds) * time.Second,
		frames:   make(chan frame.Frame, flushChanDepth),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	go r.run()
	return r, nil
}

// Write enqueues a frame for recording. Never blocks the cast's hot path:
// a full buffer drops the newest frame for recording purposes only.
func (r *Recorder) Write(f frame.Frame) error {
	select {
	case r.frames <- f.Clone():
		return nil
	default:
		log.Debug("record buffer full, dropping frame for recording only", logging.KeyCastName, r.castName)
		return nil
	}
}

// Close stops the writer goroutine, flushes any in-flight segment, and
// closes the sink.
func (r *Recorder) Close() error {
	close(r.frames)
	<-r.done
	encErr := r.encoder.Close()
	sinkErr := r.sink.Close()
	if encErr != nil {
		return encErr
	}
	return sinkErr
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.segment)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-r.frames:
			if !ok {
				r.flush(context.Background())
				return
			}
			r.append(f)
		case <-ticker.C:
			r.flush(context.Background())
		}
	}
}

func (r *Recorder) append(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() == 0 {
		r.started = time.Now()
	}
	encoded, err := r.encoder.Encode(f)
	if err != nil {
		log.Warn("record encode failed, dropping frame", logging.KeyCastName, r.castName, logging.KeyError, err)
		return
	}
	r.buf.Write(encoded)
}

func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	if r.buf.Len() == 0 {
		r.mu.Unlock()
		return
	}
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.buf.Reset()
	r.seq++
	seq := r.seq
	started := r.started
	r.mu.Unlock()

	key := segmentKey(r.castName, started, seq, r.encoder.Ext())
	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := r.sink.Upload(uploadCtx, key, data); err != nil {
		// RecordSinkError class (SPEC_FULL §7): log once, keep running,
		// the next rotation tries again — never pixels-to-wire. The failed
		// bytes go back ahead of anything buffered since, so the next flush
		// uploads them again.
		log.Warn("record sink upload failed, will retry next rotation", logging.KeyCastName, r.castName, "key", key, logging.KeyError, err)
		r.mu.Lock()
		pending := append(data, r.buf.Bytes()...)
		r.buf.Reset()
		r.buf.Write(pending)
		r.started = started
		r.mu.Unlock()
		return
	}
	log.Info("record segment flushed", logging.KeyCastName, r.castName, "key", key, "bytes", len(data))
}

func segmentKey(castName string, started time.Time, seq int, ext string) string {
	return path.Join(castName, started.UTC().Format("20060102T150405Z"), fmt.Sprintf("seg-%04d.%s", seq, ext))
}

func newSink(cfg Config, destinations []string) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case "local":
		return newLocalSink(cfg.Path)
	case "s3":
		return newS3Sink(context.Background(), cfg.Bucket, cfg.Region)
	case "azureblob":
		return newAzureBlobSink(context.Background(), cfg.Bucket)
	case "gcs":
		return newGCSSink(context.Background(), cfg.Bucket)
	case "b2":
		return newB2Sink(context.Background(), cfg.Bucket)
	case "device":
		if len(destinations) == 0 {
			return nil, fmt.Errorf("record_sink device requires at least one cast destination")
		}
		return newDeviceSink(destinations[0])
	default:
		return nil, fmt.Errorf("unknown record_sink %q", cfg.Sink)
	}
}

// deviceSink uploads segments directly to a WLED controller's own
// filesystem via the existing WLEDClient, guarded by a free-space check
// (SPEC_FULL §6 supplemented feature: "WLED free-space check before any
// record-sink upload targeting the device itself").
type deviceSink struct {
	client *device.WLEDClient
}

func newDeviceSink(addr string) (Sink, error) {
	return &deviceSink{client: device.NewWLEDClient(addr)}, nil
}

func (d *deviceSink) Upload(ctx context.Context, key string, data []byte) error {
	info, err := d.client.FetchInfo(ctx)
	if err != nil {
		return fmt.Errorf("device sink: fetch info: %w", err)
	}
	if info.FreeBytes() < len(data) {
		return fmt.Errorf("device sink: insufficient free space: need %d, have %d", len(data), info.FreeBytes())
	}
	filename := "/" + strings.ReplaceAll(key, "/", "_")
	return d.client.Upload(ctx, filename, bytes.NewReader(data))
}

func (d *deviceSink) Close() error { return nil }
