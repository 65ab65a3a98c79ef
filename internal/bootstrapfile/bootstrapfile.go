// Package bootstrapfile implements the inter-process bootstrap file
// (spec.md §6): a well-known YAML file holding the control surface's
// listen port and the current set of cast destination IPs, so auxiliary
// processes (the preview viewer, sys-charts, a mobile client) can start up
// without first reaching the HTTP/WebSocket API.
package bootstrapfile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ledcast/caster/internal/config"
)

// fileName is the well-known bootstrap file name, resolved under
// config.GetDataDir() the same way castd resolves every other runtime
// artifact.
const fileName = "bootstrap.yaml"

// Data is the bootstrap file's contents.
type Data struct {
	ServerPort int      `yaml:"server_port"`
	AllHosts   []string `yaml:"all_hosts"`
}

// Path returns the absolute path to the bootstrap file.
func Path() string {
	return filepath.Join(config.GetDataDir(), fileName)
}

// Write atomically replaces the bootstrap file with d's contents. Written
// via a temp file + rename so a concurrent Read never observes a partial
// write.
func Write(d Data) error {
	dir := config.GetDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bootstrapfile: create data dir: %w", err)
	}

	out, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("bootstrapfile: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("bootstrapfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("bootstrapfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("bootstrapfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("bootstrapfile: rename into place: %w", err)
	}
	return nil
}

// Read loads the bootstrap file. Returns an error if castd hasn't written
// one yet (the caller should report that the daemon isn't running rather
// than treating it as a fatal condition).
func Read() (Data, error) {
	var d Data
	raw, err := os.ReadFile(Path())
	if err != nil {
		return d, fmt.Errorf("bootstrapfile: read: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("bootstrapfile: unmarshal: %w", err)
	}
	return d, nil
}
