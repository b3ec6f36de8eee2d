package baokim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignVerifyRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	data := []byte(`{"mrc_order_id":"ORDER-1","total_amount":100000}`)

	sig, err := s.Sign(data)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	ok, err := s.Verify(data, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSigner_VerifyRejectsFlippedBit(t *testing.T) {
	s := newTestSigner(t)
	data := []byte(`{"code":0,"message":"Success"}`)

	sig, err := s.Sign(data)
	require.NoError(t, err)

	for i := range data {
		tampered := append([]byte(nil), data...)
		tampered[i] ^= 0x01
		ok, err := s.Verify(tampered, sig)
		require.NoError(t, err)
		assert.False(t, ok, "byte %d flipped", i)
	}
}

func TestSigner_VerifyWithOtherKeyFails(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)
	data := []byte(`{"a":1}`)

	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := other.Verify(data, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSigner_VerifyMalformedSignature(t *testing.T) {
	s := newTestSigner(t)

	for _, sig := range []string{"", "not base64!!", "AAAA"} {
		ok, err := s.Verify([]byte(`{}`), sig)
		require.NoError(t, err)
		assert.False(t, ok, sig)
	}
}

func TestSigner_MissingKeys(t *testing.T) {
	s := NewSignerFromKeys(nil, nil)

	_, err := s.Sign([]byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKey))
	assert.False(t, s.HasPrivateKey())

	_, err = s.Verify([]byte("x"), "AAAA")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKey))
	assert.False(t, s.HasPublicKey())
}

func TestSigner_IsDeterministicForSameBytes(t *testing.T) {
	s := newTestSigner(t)
	body := struct {
		A string `json:"a"`
		B int    `json:"b"`
	}{"x", 1}

	first, err := Canonicalize(body)
	require.NoError(t, err)
	second, err := Canonicalize(body)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sig1, err := s.Sign(first)
	require.NoError(t, err)
	sig2, err := s.Sign(second)
	require.NoError(t, err)
	// PKCS#1 v1.5 signatures are deterministic.
	assert.Equal(t, sig1, sig2)
}

func TestSigner_FieldOrderChangesSignature(t *testing.T) {
	s := newTestSigner(t)
	ab, err := Canonicalize(struct {
		A string `json:"a"`
		B string `json:"b"`
	}{"1", "2"})
	require.NoError(t, err)
	ba, err := Canonicalize(struct {
		B string `json:"b"`
		A string `json:"a"`
	}{"2", "1"})
	require.NoError(t, err)

	assert.Equal(t, `{"a":"1","b":"2"}`, string(ab))
	assert.Equal(t, `{"b":"2","a":"1"}`, string(ba))

	sigAB, err := s.Sign(ab)
	require.NoError(t, err)
	sigBA, err := s.Sign(ba)
	require.NoError(t, err)
	assert.NotEqual(t, sigAB, sigBA)
}

func TestCanonicalize_NoEscaping(t *testing.T) {
	out, err := Canonicalize(map[string]string{
		"url_success": "https://shop.example.com/return?a=1&b=2",
		"description": "Thanh toán đơn hàng <b>",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`{"description":"Thanh toán đơn hàng <b>","url_success":"https://shop.example.com/return?a=1&b=2"}`,
		string(out))
}

func TestCanonicalize_PassesBytesThrough(t *testing.T) {
	raw := []byte(`{"z":1,  "a":2}`)
	out, err := Canonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestCanonicalize_OmitsUnsetOptionalFields(t *testing.T) {
	type body struct {
		MrcOrderID string `json:"mrc_order_id"`
		Amount     *int64 `json:"amount,omitempty"`
		StoreCode  string `json:"store_code,omitempty"`
	}
	out, err := Canonicalize(body{MrcOrderID: "O1"})
	require.NoError(t, err)
	assert.Equal(t, `{"mrc_order_id":"O1"}`, string(out))
}

func TestGenerateKeyPair(t *testing.T) {
	privPEM, pubPEM, err := GenerateKeyPair(0)
	require.NoError(t, err)

	block, _ := pem.Decode(privPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	block, _ = pem.Decode(pubPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)

	priv, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyBits, priv.N.BitLen())

	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)

	s := NewSignerFromKeys(priv, pub)
	sig, err := s.Sign([]byte("payload"))
	require.NoError(t, err)
	ok, err := s.Verify([]byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveKeyPairAndNewSigner(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "keys", "merchant_private.pem")
	pubPath := filepath.Join(dir, "keys", "merchant_public.pem")

	require.NoError(t, SaveKeyPair(privPath, pubPath, 2048))

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	s, err := NewSigner(privPath, pubPath)
	require.NoError(t, err)
	assert.True(t, s.HasPrivateKey())
	assert.True(t, s.HasPublicKey())

	sig, err := s.Sign([]byte("hello"))
	require.NoError(t, err)
	ok, err := s.Verify([]byte("hello"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSigner_MissingFile(t *testing.T) {
	_, err := NewSigner(filepath.Join(t.TempDir(), "missing.pem"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKey))
}

func TestParseKeys_AlternateEncodings(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParsePrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	pkcs1Pub := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	pub, err := ParsePublicKey(pkcs1Pub)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	_, err = ParsePrivateKey([]byte("garbage"))
	assert.True(t, errors.Is(err, ErrKey))
	_, err = ParsePublicKey([]byte("garbage"))
	assert.True(t, errors.Is(err, ErrKey))
}
