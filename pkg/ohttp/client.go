package ohttp

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

// maxResponseSize bounds the encapsulated response read into memory.
const maxResponseSize = 64 << 20

// Client encapsulates requests for one gateway key configuration. It is
// immutable after construction and safe for concurrent use.
type Client struct {
	relayURL string
	hdr      header
	suite    hpke.Suite
	pk       kem.PublicKey
}

// NewClient creates a Client that sends encapsulated requests to relayURL,
// sealed to kc.
func NewClient(relayURL string, kc KeyConfig) (*Client, error) {
	if relayURL == "" {
		return nil, fmt.Errorf("ohttp: relay URL is required")
	}
	alg, err := kc.Select()
	if err != nil {
		return nil, err
	}
	pk, err := kc.PublicKeyOf()
	if err != nil {
		return nil, fmt.Errorf("ohttp: invalid public key: %w", err)
	}
	return &Client{
		relayURL: relayURL,
		hdr:      header{keyID: kc.KeyID, kem: kc.KEM, alg: alg},
		suite:    hpke.NewSuite(kc.KEM, alg.KDF, alg.AEAD),
		pk:       pk,
	}, nil
}

// RelayURL returns the URL encapsulated requests are posted to.
func (c *Client) RelayURL() string {
	return c.relayURL
}

// ResponseContext holds the per-request state needed to open the response.
type ResponseContext struct {
	ctx  exporter
	aead hpke.AEAD
	enc  []byte
	req  *http.Request
}

// EncapsulateRequest seals req and returns the outer request to send to the
// relay. The inner request body is consumed and closed.
func (c *Client) EncapsulateRequest(req *http.Request) (*http.Request, *ResponseContext, error) {
	inner, err := encodeRequest(req)
	if err != nil {
		return nil, nil, err
	}

	hdr := c.hdr.bytes()
	sender, err := c.suite.NewSender(c.pk, c.hdr.requestInfo())
	if err != nil {
		return nil, nil, fmt.Errorf("ohttp: hpke sender: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ohttp: hpke setup: %w", err)
	}
	ct, err := sealer.Seal(inner, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("ohttp: sealing request: %w", err)
	}

	body := make([]byte, 0, len(hdr)+len(enc)+len(ct))
	body = append(body, hdr...)
	body = append(body, enc...)
	body = append(body, ct...)

	outer, err := http.NewRequestWithContext(req.Context(), http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("ohttp: building relay request: %w", err)
	}
	outer.Header.Set("Content-Type", RequestMediaType)

	return outer, &ResponseContext{ctx: sealer, aead: c.hdr.alg.AEAD, enc: enc, req: req}, nil
}

// Decapsulate opens the relay's response and returns the inner response.
// The outer body is read fully and closed.
func (rc *ResponseContext) Decapsulate(resp *http.Response) (*http.Response, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ohttp: relay returned HTTP %d", resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != ResponseMediaType {
		return nil, fmt.Errorf("ohttp: unexpected response media type %q", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("ohttp: reading response: %w", err)
	}
	plain, err := openResponse(rc.ctx, rc.aead, rc.enc, data)
	if err != nil {
		return nil, err
	}
	inner, err := decodeResponse(plain)
	if err != nil {
		return nil, err
	}
	inner.Request = rc.req
	return inner, nil
}
