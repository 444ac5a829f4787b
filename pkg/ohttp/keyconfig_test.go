package ohttp

import (
	"testing"

	"github.com/cloudflare/circl/hpke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := NewGateway(7, nil, nil)
	require.NoError(t, err)
	return g
}

func TestKeyConfig_MarshalParse(t *testing.T) {
	kc := testGateway(t).KeyConfig()

	data, err := kc.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, 1+2+32+2+8)

	got, err := ParseKeyConfig(data)
	require.NoError(t, err)
	assert.Equal(t, kc, got)
}

func TestParseKeyConfigs_ListAndSingle(t *testing.T) {
	kc := testGateway(t).KeyConfig()

	list, err := MarshalKeyConfigs(kc, kc)
	require.NoError(t, err)
	configs, err := ParseKeyConfigs(list)
	require.NoError(t, err)
	assert.Len(t, configs, 2)

	single, err := kc.MarshalBinary()
	require.NoError(t, err)
	configs, err = ParseKeyConfigs(single)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, uint8(7), configs[0].KeyID)
}

func TestParseKeyConfig_Errors(t *testing.T) {
	kc := testGateway(t).KeyConfig()
	data, err := kc.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", data[:20]},
		{"trailing bytes", append(append([]byte(nil), data...), 0)},
		{"unsupported kem", append([]byte{1, 0x00, 0x10}, data[3:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyConfig(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestKeyConfig_Select(t *testing.T) {
	kc := KeyConfig{
		KEM: hpke.KEM_X25519_HKDF_SHA256,
		Algorithms: []SymmetricAlgorithm{
			{KDF: hpke.KDF_HKDF_SHA512, AEAD: hpke.AEAD_AES128GCM},
			{KDF: hpke.KDF_HKDF_SHA256, AEAD: hpke.AEAD_AES256GCM},
		},
	}
	alg, err := kc.Select()
	require.NoError(t, err)
	assert.Equal(t, hpke.AEAD_AES256GCM, alg.AEAD)

	kc.Algorithms = kc.Algorithms[:1]
	_, err = kc.Select()
	assert.ErrorIs(t, err, ErrUnsupported)
}
