package ohttp

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cloudflare/circl/hpke"
	"golang.org/x/crypto/hkdf"
)

// Media types of encapsulated messages.
const (
	RequestMediaType  = "message/ohttp-req"
	ResponseMediaType = "message/ohttp-res"
)

const (
	requestLabel  = "message/bhttp request"
	responseLabel = "message/bhttp response"
)

// header is the request header that binds the key configuration.
type header struct {
	keyID uint8
	kem   hpke.KEM
	alg   SymmetricAlgorithm
}

const headerLen = 7

func (h header) bytes() []byte {
	b := make([]byte, 0, headerLen)
	b = append(b, h.keyID)
	b = binary.BigEndian.AppendUint16(b, uint16(h.kem))
	b = binary.BigEndian.AppendUint16(b, uint16(h.alg.KDF))
	b = binary.BigEndian.AppendUint16(b, uint16(h.alg.AEAD))
	return b
}

func parseHeader(b []byte) (header, error) {
	if len(b) < headerLen {
		return header{}, fmt.Errorf("ohttp: encapsulated request too short")
	}
	return header{
		keyID: b[0],
		kem:   hpke.KEM(binary.BigEndian.Uint16(b[1:3])),
		alg: SymmetricAlgorithm{
			KDF:  hpke.KDF(binary.BigEndian.Uint16(b[3:5])),
			AEAD: hpke.AEAD(binary.BigEndian.Uint16(b[5:7])),
		},
	}, nil
}

// requestInfo is the HPKE info string for request encapsulation.
func (h header) requestInfo() []byte {
	info := append([]byte(requestLabel), 0)
	return append(info, h.bytes()...)
}

// exporter is the part of an HPKE context needed to derive response keys.
type exporter interface {
	Export(exporterContext []byte, length uint) []byte
}

func responseNonceLen(aead hpke.AEAD) int {
	return int(max(aead.KeySize(), aead.NonceSize()))
}

// responseAEAD derives the response key and nonce from the request context,
// the encapsulated key and the response nonce.
func responseAEAD(ctx exporter, aead hpke.AEAD, enc, responseNonce []byte) (key, nonce []byte, err error) {
	secret := ctx.Export([]byte(responseLabel), aead.KeySize())

	salt := make([]byte, 0, len(enc)+len(responseNonce))
	salt = append(salt, enc...)
	salt = append(salt, responseNonce...)

	prk := hkdf.Extract(sha256.New, secret, salt)

	key = make([]byte, aead.KeySize())
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("key")), key); err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("nonce")), nonce); err != nil {
		return nil, nil, err
	}
	return key, nonce, nil
}

// sealResponse encrypts a Binary HTTP response for the client that sent
// enc. rand supplies the response nonce.
func sealResponse(ctx exporter, aead hpke.AEAD, enc, response []byte, rand io.Reader) ([]byte, error) {
	responseNonce := make([]byte, responseNonceLen(aead))
	if _, err := io.ReadFull(rand, responseNonce); err != nil {
		return nil, fmt.Errorf("ohttp: response nonce: %w", err)
	}
	key, nonce, err := responseAEAD(ctx, aead, enc, responseNonce)
	if err != nil {
		return nil, err
	}
	c, err := aead.New(key)
	if err != nil {
		return nil, err
	}
	return c.Seal(responseNonce, nonce, response, nil), nil
}

// openResponse decrypts an encapsulated response.
func openResponse(ctx exporter, aead hpke.AEAD, enc, encResponse []byte) ([]byte, error) {
	n := responseNonceLen(aead)
	if len(encResponse) < n {
		return nil, fmt.Errorf("ohttp: encapsulated response too short")
	}
	key, nonce, err := responseAEAD(ctx, aead, enc, encResponse[:n])
	if err != nil {
		return nil, err
	}
	c, err := aead.New(key)
	if err != nil {
		return nil, err
	}
	plain, err := c.Open(nil, nonce, encResponse[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("ohttp: opening response: %w", err)
	}
	return plain, nil
}
