package ohttp

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"

	"github.com/rhuss/confwhisper/pkg/debug"
)

// maxRequestSize bounds the encapsulated request read into memory.
const maxRequestSize = 10 << 20

// Gateway is the server side of Oblivious HTTP. It opens encapsulated
// requests, serves them with Target, and seals the buffered responses.
type Gateway struct {
	config KeyConfig
	sk     kem.PrivateKey
	target http.Handler
	logger *slog.Logger
}

// NewGateway generates a fresh X25519 key pair with the given key ID and
// returns a gateway forwarding to target.
func NewGateway(keyID uint8, target http.Handler, logger *slog.Logger) (*Gateway, error) {
	scheme := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	pk, sk, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("ohttp: generating key pair: %w", err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config: KeyConfig{
			KeyID:     keyID,
			KEM:       hpke.KEM_X25519_HKDF_SHA256,
			PublicKey: pkBytes,
			Algorithms: []SymmetricAlgorithm{
				{KDF: hpke.KDF_HKDF_SHA256, AEAD: hpke.AEAD_AES128GCM},
				{KDF: hpke.KDF_HKDF_SHA256, AEAD: hpke.AEAD_ChaCha20Poly1305},
			},
		},
		sk:     sk,
		target: target,
		logger: logger,
	}, nil
}

// KeyConfig returns the gateway's public key configuration.
func (g *Gateway) KeyConfig() KeyConfig {
	return g.config
}

// KeysHandler serves the key configuration as application/ohttp-keys.
func (g *Gateway) KeysHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := MarshalKeyConfigs(g.config)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", KeysMediaType)
		w.Write(body)
	})
}

// ServeHTTP handles one encapsulated request.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != RequestMediaType {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "reading request", http.StatusBadRequest)
		return
	}

	inner, opener, hdr, enc, err := g.open(r, data)
	if err != nil {
		g.logger.Warn("rejecting encapsulated request", "error", err.Error())
		http.Error(w, "invalid encapsulated request", http.StatusBadRequest)
		return
	}
	debug.Log("ohttp", "gateway request", "method", inner.Method, "path", inner.URL.Path)

	rec := newResponseBuffer()
	g.target.ServeHTTP(rec, inner)

	sealed, err := sealResponse(opener, hdr.alg.AEAD, enc, encodeResponse(rec.status, rec.header, rec.body.Bytes()), rand.Reader)
	if err != nil {
		g.logger.Error("sealing encapsulated response", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ResponseMediaType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(sealed)
}

func (g *Gateway) open(r *http.Request, data []byte) (*http.Request, hpke.Opener, header, []byte, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, nil, header{}, nil, err
	}
	if hdr.keyID != g.config.KeyID || hdr.kem != g.config.KEM {
		return nil, nil, header{}, nil, fmt.Errorf("ohttp: unknown key %d", hdr.keyID)
	}
	if !supportedKDF(hdr.alg.KDF) || !supportedAEAD(hdr.alg.AEAD) {
		return nil, nil, header{}, nil, ErrUnsupported
	}

	nenc := hdr.kem.Scheme().CiphertextSize()
	if len(data) < headerLen+nenc {
		return nil, nil, header{}, nil, fmt.Errorf("ohttp: encapsulated request too short")
	}
	enc := data[headerLen : headerLen+nenc]
	ct := data[headerLen+nenc:]

	receiver, err := hpke.NewSuite(hdr.kem, hdr.alg.KDF, hdr.alg.AEAD).NewReceiver(g.sk, hdr.requestInfo())
	if err != nil {
		return nil, nil, header{}, nil, err
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, nil, header{}, nil, err
	}
	plain, err := opener.Open(ct, nil)
	if err != nil {
		return nil, nil, header{}, nil, fmt.Errorf("ohttp: opening request: %w", err)
	}

	inner, err := decodeRequest(r.Context(), plain)
	if err != nil {
		return nil, nil, header{}, nil, err
	}
	inner.RemoteAddr = r.RemoteAddr
	return inner, opener, hdr, enc, nil
}

// responseBuffer collects a handler's response so it can be sealed whole.
type responseBuffer struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header), status: http.StatusOK}
}

func (b *responseBuffer) Header() http.Header { return b.header }

func (b *responseBuffer) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

// Flush is a no-op so streaming handlers run unchanged; output is sealed
// when the handler returns.
func (b *responseBuffer) Flush() {}
