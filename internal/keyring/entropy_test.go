package keyring

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestMnemonicEntropySource(t *testing.T) {
	src, err := NewMnemonicEntropySource(testMnemonic, "")
	require.NoError(t, err)

	a, err := src.Entropy(context.Background(), "Alice")
	require.NoError(t, err)
	b, err := src.Entropy(context.Background(), "Alice")
	require.NoError(t, err)
	c, err := src.Entropy(context.Background(), "Bob")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	other, err := NewMnemonicEntropySource(testMnemonic, "passphrase")
	require.NoError(t, err)
	d, err := other.Entropy(context.Background(), "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestMnemonicEntropySourceInvalid(t *testing.T) {
	_, err := NewMnemonicEntropySource("not a mnemonic", "")
	assert.ErrorIs(t, err, types.ErrEntropyUnavailable)

	src, err := NewMnemonicEntropySource(testMnemonic, "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Entropy(ctx, "Alice")
	assert.ErrorIs(t, err, types.ErrEntropyUnavailable)
}

func TestNewMnemonic(t *testing.T) {
	m, err := NewMnemonic()
	require.NoError(t, err)
	_, err = NewMnemonicEntropySource(m, "")
	assert.NoError(t, err)
}

type failingSource struct{}

func (failingSource) Entropy(context.Context, string) ([]byte, error) {
	return nil, assert.AnError
}

func TestKeyDeriver(t *testing.T) {
	src, err := NewMnemonicEntropySource(testMnemonic, "")
	require.NoError(t, err)
	d := NewKeyDeriver(src)

	key, addr, err := d.Derive(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	_, again, err := d.Derive(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	_, _, err = NewKeyDeriver(failingSource{}).Derive(context.Background(), "Alice")
	assert.ErrorIs(t, err, types.ErrEntropyUnavailable)
}

func TestSealer(t *testing.T) {
	none, err := NewSealer("")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, secret := range []string{
		"0x000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		"correct horse battery staple",
	} {
		s, err := NewSealer(secret)
		require.NoError(t, err)

		sealed, err := encodeKey(s, []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Contains(t, sealed, sealedPrefix)

		plain, err := decodeKey(s, sealed)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, plain)

		_, err = decodeKey(nil, sealed)
		assert.Error(t, err)
	}

	plain, err := encodeKey(nil, []byte{0xab})
	require.NoError(t, err)
	assert.Equal(t, "0xab", plain)
}

func TestParseSigningRequest(t *testing.T) {
	from := "0x1111111111111111111111111111111111111111"
	params := func(v ...interface{}) json.RawMessage {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return raw
	}

	sr, err := ParseSigningRequest(types.SigningMethod{Method: types.MethodPersonalSign, Params: params(from, "0x48656c6c6f")})
	require.NoError(t, err)
	ps, ok := sr.(*PersonalSignRequest)
	require.True(t, ok)
	assert.Equal(t, []byte("Hello"), ps.Message)
	assert.Equal(t, common.HexToAddress(from), ps.Signer())

	sr, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodPersonalSign, Params: params(from, "0xnothex")})
	require.NoError(t, err)
	assert.Equal(t, []byte("0xnothex"), sr.(*PersonalSignRequest).Message)

	sr, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodSignTypedData, Params: params(from, "[]", map[string]string{"version": "v4"})})
	require.NoError(t, err)
	assert.Equal(t, TypedDataV4, sr.(*SignTypedDataRequest).Version)
	assert.Equal(t, types.MethodSignTypedData, sr.Method())

	sr, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodSignTypedDataV3, Params: params(from, "{}")})
	require.NoError(t, err)
	assert.Equal(t, TypedDataV3, sr.(*SignTypedDataRequest).Version)

	_, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodSignTypedData, Params: params(from, "{}", map[string]string{"version": "v9"})})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodPersonalSign, Params: json.RawMessage(`{"not":"array"}`)})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodPersonalSign, Params: params("a", "b")})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = ParseSigningRequest(types.SigningMethod{Method: types.MethodSendTransaction, Params: params(from, map[string]string{"sender": from, "signature": "0x01"})})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = ParseSigningRequest(types.SigningMethod{Method: "eth_accounts"})
	assert.ErrorIs(t, err, types.ErrUnsupportedSigningMethod)
}
