// Package pgharness runs a disposable, real PostgreSQL instance for tests:
// initdb into a scratch directory, start postgres on an ephemeral port, and
// poll pg_isready until the instance accepts connections. It is a Go port
// of the project's own radium226/pg PostgreSQL harness.
package pgharness

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNotReady is returned by Start when pg_isready never succeeds within
// its retry budget; it wraps the last pg_isready failure.
var ErrNotReady = errors.New("pgharness: instance never became ready")

// Option configures a Harness before Start.
type Option func(*Harness)

// WithTLS generates a throwaway self-signed certificate and enables SSL on
// the instance.
func WithTLS() Option {
	return func(h *Harness) { h.tls = true }
}

// WithDataDir pins the data directory instead of using a scratch temp dir
// (useful to inspect a failed instance's data directory after a test run;
// the server's own log output goes to stderr).
func WithDataDir(dir string) Option {
	return func(h *Harness) { h.dataDir = dir }
}

// Harness owns one scoped PostgreSQL instance.
type Harness struct {
	tls     bool
	dataDir string
	ownsDir bool

	port int
	cmd  *exec.Cmd
}

// New constructs a Harness. Call Start to actually bring the instance up.
func New(opts ...Option) *Harness {
	h := &Harness{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs initdb (if needed), optionally generates TLS material, starts
// postgres on a kernel-assigned port, and blocks until pg_isready succeeds
// or its retry budget is exhausted.
func (h *Harness) Start(ctx context.Context) error {
	if h.dataDir == "" {
		dir, err := os.MkdirTemp("", "pgharness-")
		if err != nil {
			return fmt.Errorf("pgharness: mkdir temp: %w", err)
		}
		h.dataDir = dir
		h.ownsDir = true
	}

	if _, err := os.Stat(filepath.Join(h.dataDir, "PG_VERSION")); errors.Is(err, os.ErrNotExist) {
		if err := h.initdb(ctx); err != nil {
			return err
		}
		if h.tls {
			if err := h.generateTLSCertificates(); err != nil {
				return err
			}
		}
	}

	port, err := freePort()
	if err != nil {
		return fmt.Errorf("pgharness: find free port: %w", err)
	}
	h.port = port

	if err := h.startInstance(ctx); err != nil {
		return err
	}

	return h.waitUntilReady(ctx)
}

// Stop terminates the postgres process and removes the data directory if
// Start created it.
func (h *Harness) Stop(ctx context.Context) error {
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
		done := make(chan error, 1)
		go func() { done <- h.cmd.Wait() }()
		select {
		case <-done:
		case <-ctx.Done():
			_ = h.cmd.Process.Kill()
		}
	}
	if h.ownsDir {
		_ = os.RemoveAll(h.dataDir)
	}
	return nil
}

// Host is always localhost: the harness only ever binds loopback.
func (h *Harness) Host() string { return "localhost" }

// Port is the instance's listening port, valid once Start has returned.
func (h *Harness) Port() int { return h.port }

func (h *Harness) initdb(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "initdb", "-D", h.dataDir, "-U", "postgres")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pgharness: initdb: %w: %s", err, out)
	}
	return nil
}

func (h *Harness) startInstance(ctx context.Context) error {
	h.cmd = exec.CommandContext(ctx, "postgres",
		"-D", h.dataDir,
		"-c", fmt.Sprintf("unix_socket_directories=%s", h.dataDir),
		"-c", fmt.Sprintf("port=%d", h.port),
		"-c", "listen_addresses=localhost",
	)
	h.cmd.Stdout = os.Stderr
	h.cmd.Stderr = os.Stderr
	if err := h.cmd.Start(); err != nil {
		return fmt.Errorf("pgharness: start postgres: %w", err)
	}
	return nil
}

// waitUntilReady polls pg_isready with a constant 1s backoff, up to 5
// attempts, matching the original harness's @retry(times=5, wait=1).
func (h *Harness) waitUntilReady(ctx context.Context) error {
	check := func() (struct{}, error) {
		cmd := exec.CommandContext(ctx, "pg_isready",
			"-h", "localhost",
			"-p", fmt.Sprintf("%d", h.port),
			"-U", "postgres",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return struct{}{}, fmt.Errorf("pg_isready: %w: %s", err, out)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, check,
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

func (h *Harness) generateTLSCertificates() error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("pgharness: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("pgharness: generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("pgharness: create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	if err := os.WriteFile(filepath.Join(h.dataDir, "server.crt"), certPEM, 0o644); err != nil {
		return fmt.Errorf("pgharness: write server.crt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(h.dataDir, "server.key"), keyPEM, 0o400); err != nil {
		return fmt.Errorf("pgharness: write server.key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(h.dataDir, "root.crt"), certPEM, 0o644); err != nil {
		return fmt.Errorf("pgharness: write root.crt: %w", err)
	}

	conf, err := os.OpenFile(filepath.Join(h.dataDir, "postgresql.conf"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("pgharness: open postgresql.conf: %w", err)
	}
	defer func() { _ = conf.Close() }()

	_, err = conf.WriteString("ssl = on\n" +
		"ssl_ca_file = 'root.crt'\n" +
		"ssl_cert_file = 'server.crt'\n" +
		"ssl_crl_file = ''\n" +
		"ssl_key_file = 'server.key'\n")
	if err != nil {
		return fmt.Errorf("pgharness: append ssl config: %w", err)
	}
	return nil
}

func freePort() (int, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = lis.Close() }()
	return lis.Addr().(*net.TCPAddr).Port, nil
}

// TLSConfigForTests is a convenience a caller can use to dial the harness
// over TLS with certificate verification disabled, since the generated
// certificate is self-signed for localhost only.
func TLSConfigForTests() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test-only, self-signed localhost cert
}
