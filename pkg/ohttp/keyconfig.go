package ohttp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

// KeysMediaType is the media type of a key configuration list.
const KeysMediaType = "application/ohttp-keys"

// SymmetricAlgorithm is a KDF/AEAD pair offered by a key configuration.
type SymmetricAlgorithm struct {
	KDF  hpke.KDF
	AEAD hpke.AEAD
}

// KeyConfig is a gateway's public key configuration.
type KeyConfig struct {
	KeyID      uint8
	KEM        hpke.KEM
	PublicKey  []byte
	Algorithms []SymmetricAlgorithm
}

// ErrUnsupported is returned when no offered algorithm combination is
// supported.
var ErrUnsupported = errors.New("ohttp: unsupported algorithms")

func supportedKEM(k hpke.KEM) bool {
	return k == hpke.KEM_X25519_HKDF_SHA256
}

func supportedKDF(k hpke.KDF) bool {
	return k == hpke.KDF_HKDF_SHA256
}

func supportedAEAD(a hpke.AEAD) bool {
	switch a {
	case hpke.AEAD_AES128GCM, hpke.AEAD_AES256GCM, hpke.AEAD_ChaCha20Poly1305:
		return true
	}
	return false
}

// Select returns the first offered algorithm pair this package supports.
func (c KeyConfig) Select() (SymmetricAlgorithm, error) {
	if !supportedKEM(c.KEM) {
		return SymmetricAlgorithm{}, fmt.Errorf("%w: kem 0x%04x", ErrUnsupported, uint16(c.KEM))
	}
	for _, alg := range c.Algorithms {
		if supportedKDF(alg.KDF) && supportedAEAD(alg.AEAD) {
			return alg, nil
		}
	}
	return SymmetricAlgorithm{}, fmt.Errorf("%w: no usable kdf/aead pair", ErrUnsupported)
}

// PublicKeyOf decodes the configuration's public key.
func (c KeyConfig) PublicKeyOf() (kem.PublicKey, error) {
	if !supportedKEM(c.KEM) {
		return nil, fmt.Errorf("%w: kem 0x%04x", ErrUnsupported, uint16(c.KEM))
	}
	return c.KEM.Scheme().UnmarshalBinaryPublicKey(c.PublicKey)
}

// MarshalBinary encodes the configuration as key_id, kem_id, public key,
// and a length-prefixed list of kdf_id/aead_id pairs.
func (c KeyConfig) MarshalBinary() ([]byte, error) {
	if len(c.Algorithms) == 0 {
		return nil, errors.New("ohttp: key config has no algorithms")
	}
	out := make([]byte, 0, 3+len(c.PublicKey)+2+4*len(c.Algorithms))
	out = append(out, c.KeyID)
	out = binary.BigEndian.AppendUint16(out, uint16(c.KEM))
	out = append(out, c.PublicKey...)
	out = binary.BigEndian.AppendUint16(out, uint16(4*len(c.Algorithms)))
	for _, alg := range c.Algorithms {
		out = binary.BigEndian.AppendUint16(out, uint16(alg.KDF))
		out = binary.BigEndian.AppendUint16(out, uint16(alg.AEAD))
	}
	return out, nil
}

// ParseKeyConfig decodes a single key configuration that fills data exactly.
func ParseKeyConfig(data []byte) (KeyConfig, error) {
	kc, n, err := parseKeyConfig(data)
	if err != nil {
		return KeyConfig{}, err
	}
	if n != len(data) {
		return KeyConfig{}, fmt.Errorf("ohttp: %d trailing bytes after key config", len(data)-n)
	}
	return kc, nil
}

func parseKeyConfig(data []byte) (KeyConfig, int, error) {
	if len(data) < 3 {
		return KeyConfig{}, 0, errors.New("ohttp: key config too short")
	}
	kc := KeyConfig{
		KeyID: data[0],
		KEM:   hpke.KEM(binary.BigEndian.Uint16(data[1:3])),
	}
	if !supportedKEM(kc.KEM) {
		return KeyConfig{}, 0, fmt.Errorf("%w: kem 0x%04x", ErrUnsupported, uint16(kc.KEM))
	}

	off := 3
	npk := kc.KEM.Scheme().PublicKeySize()
	if len(data) < off+npk+2 {
		return KeyConfig{}, 0, errors.New("ohttp: key config truncated")
	}
	kc.PublicKey = append([]byte(nil), data[off:off+npk]...)
	off += npk

	algLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if algLen == 0 || algLen%4 != 0 || len(data) < off+algLen {
		return KeyConfig{}, 0, errors.New("ohttp: invalid symmetric algorithm list")
	}
	for i := 0; i < algLen; i += 4 {
		kc.Algorithms = append(kc.Algorithms, SymmetricAlgorithm{
			KDF:  hpke.KDF(binary.BigEndian.Uint16(data[off+i : off+i+2])),
			AEAD: hpke.AEAD(binary.BigEndian.Uint16(data[off+i+2 : off+i+4])),
		})
	}
	off += algLen
	return kc, off, nil
}

// ParseKeyConfigs decodes an application/ohttp-keys body: a sequence of
// key configurations each prefixed by a 2-byte length. A body holding a
// single unprefixed configuration is also accepted.
func ParseKeyConfigs(data []byte) ([]KeyConfig, error) {
	if configs, err := parseKeyConfigList(data); err == nil {
		return configs, nil
	}
	kc, err := ParseKeyConfig(data)
	if err != nil {
		return nil, err
	}
	return []KeyConfig{kc}, nil
}

func parseKeyConfigList(data []byte) ([]KeyConfig, error) {
	var configs []KeyConfig
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, errors.New("ohttp: truncated key config length")
		}
		n := int(binary.BigEndian.Uint16(data[:2]))
		if len(data) < 2+n {
			return nil, errors.New("ohttp: truncated key config")
		}
		kc, err := ParseKeyConfig(data[2 : 2+n])
		if err != nil {
			return nil, err
		}
		configs = append(configs, kc)
		data = data[2+n:]
	}
	if len(configs) == 0 {
		return nil, errors.New("ohttp: empty key config list")
	}
	return configs, nil
}

// MarshalKeyConfigs encodes configurations as an application/ohttp-keys body.
func MarshalKeyConfigs(configs ...KeyConfig) ([]byte, error) {
	var out []byte
	for _, kc := range configs {
		b, err := kc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(b)))
		out = append(out, b...)
	}
	return out, nil
}
