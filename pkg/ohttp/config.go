package ohttp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rhuss/confwhisper/pkg/debug"
)

// Config describes how to reach the relay and where to obtain the gateway's
// key configuration.
type Config struct {
	// RelayURL receives encapsulated requests.
	RelayURL string `yaml:"relay_url"`

	// KeyConfigFile is a local file holding the key configuration.
	KeyConfigFile string `yaml:"key_config_file"`

	// KMSURL serves the key configuration over HTTPS. Used when
	// KeyConfigFile is empty.
	KMSURL string `yaml:"kms_url"`

	// KMSCertPath is a PEM bundle of CAs trusted for the KMS connection.
	// Empty uses the system roots.
	KMSCertPath string `yaml:"kms_cert_path"`

	// Wrap routes backend traffic through the relay. When false the client
	// is built but requests go directly to the backend.
	Wrap bool `yaml:"wrap"`
}

// Validate checks that a relay and a key source are configured.
func (c Config) Validate() error {
	var errs []error
	if c.RelayURL == "" {
		errs = append(errs, errors.New("ohttp relay URL is required"))
	}
	if c.KeyConfigFile == "" && c.KMSURL == "" {
		errs = append(errs, errors.New("ohttp requires key_config_file or kms_url"))
	}
	return errors.Join(errs...)
}

const kmsTimeout = 30 * time.Second

// Builder constructs a Client from a Config.
type Builder struct {
	Config Config

	// HTTPClient fetches the key configuration from the KMS. Nil builds a
	// client trusting KMSCertPath.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Build loads the key configuration and returns a Client.
func (b Builder) Build(ctx context.Context) (*Client, error) {
	if err := b.Config.Validate(); err != nil {
		return nil, err
	}

	data, err := b.loadKeys(ctx)
	if err != nil {
		return nil, err
	}
	configs, err := ParseKeyConfigs(data)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, kc := range configs {
		client, err := NewClient(b.Config.RelayURL, kc)
		if err == nil {
			debug.Log("ohttp", "client ready", "relay", b.Config.RelayURL, "key_id", kc.KeyID)
			return client, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (b Builder) loadKeys(ctx context.Context) ([]byte, error) {
	if b.Config.KeyConfigFile != "" {
		data, err := os.ReadFile(b.Config.KeyConfigFile)
		if err != nil {
			return nil, fmt.Errorf("ohttp: reading key config: %w", err)
		}
		return data, nil
	}

	client := b.HTTPClient
	if client == nil {
		var err error
		client, err = kmsClient(b.Config.KMSCertPath)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Config.KMSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ohttp: building KMS request: %w", err)
	}
	req.Header.Set("Accept", KeysMediaType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ohttp: fetching key config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ohttp: KMS returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 64<<10))
}

func kmsClient(certPath string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if certPath != "" {
		pem, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("ohttp: reading KMS certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ohttp: no certificates in %s", certPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{Transport: transport, Timeout: kmsTimeout}, nil
}

// Start builds the client in the background. The result is available
// through the returned Pending.
func (b Builder) Start(ctx context.Context) *Pending {
	p := &Pending{done: make(chan struct{})}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		defer close(p.done)
		p.client, p.err = b.Build(ctx)
		if p.err != nil {
			logger.Error("ohttp client initialization failed", "error", p.err.Error())
		}
	}()
	return p
}

// Pending is a Client under construction. The outcome is computed once and
// shared by every waiter.
type Pending struct {
	done   chan struct{}
	client *Client
	err    error
}

// Ready returns a Pending that has already completed.
func Ready(client *Client, err error) *Pending {
	p := &Pending{done: make(chan struct{}), client: client, err: err}
	close(p.done)
	return p
}

// Wait blocks until the client is built or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Client, error) {
	select {
	case <-p.done:
		return p.client, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
