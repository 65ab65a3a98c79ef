package bootstrapfile

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestWriteReadRoundTrip exercises the YAML shape directly rather than
// Write/Read, since those resolve against config.GetDataDir (a fixed,
// platform-specific path not meant to be overridden in tests).
func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)
	d := Data{ServerPort: 8420, AllHosts: []string{"10.0.0.5", "10.0.0.6"}}

	out, err := yaml.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Data
	if err := yaml.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ServerPort != d.ServerPort || len(got.AllHosts) != len(d.AllHosts) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
}
