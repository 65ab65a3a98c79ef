package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("mtls")

// BuildServerTLSConfig loads a server certificate/key pair for the control
// surface listener. If clientCAFile is non-empty, client certificates are
// required and verified against it; otherwise the listener serves plain TLS
// with no client auth. Returns nil, nil if certFile and keyFile are both
// empty, meaning the control surface should listen without TLS.
func BuildServerTLSConfig(certFile, keyFile, clientCAFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("mtls: both control_cert_file and control_key_file must be set")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("mtls: load server cert pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if clientCAFile == "" {
		return cfg, nil
	}

	caPEM, err := os.ReadFile(clientCAFile)
	if err != nil {
		return nil, fmt.Errorf("mtls: read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("mtls: no certificates found in %s", clientCAFile)
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	log.Info("control surface requiring client certificates", "ca_file", clientCAFile)
	return cfg, nil
}
