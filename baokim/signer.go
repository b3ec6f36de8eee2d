package baokim

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKeyBits is the modulus size used by GenerateKeyPair when bits is zero.
const DefaultKeyBits = 2048

// RequestSigner signs canonical request bytes.
type RequestSigner interface {
	Sign(data []byte) (string, error)
}

// SignatureVerifier checks a base64 signature against raw bytes.
type SignatureVerifier interface {
	Verify(data []byte, signature string) (bool, error)
}

// Signer holds the merchant private key for outbound requests and the gateway
// public key for inbound webhooks. Either key may be absent.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewSigner loads the keys found at the given paths. An empty path leaves that
// key unset; operations needing it then fail with ErrKey.
func NewSigner(privateKeyPath, publicKeyPath string) (*Signer, error) {
	s := &Signer{}
	if privateKeyPath != "" {
		key, err := LoadPrivateKey(privateKeyPath)
		if err != nil {
			return nil, err
		}
		s.privateKey = key
	}
	if publicKeyPath != "" {
		key, err := LoadPublicKey(publicKeyPath)
		if err != nil {
			return nil, err
		}
		s.publicKey = key
	}
	return s, nil
}

// NewSignerFromKeys builds a Signer from already parsed keys.
func NewSignerFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) *Signer {
	return &Signer{privateKey: privateKey, publicKey: publicKey}
}

// Sign returns the base64 RSA-SHA256 (PKCS#1 v1.5) signature of data.
func (s *Signer) Sign(data []byte) (string, error) {
	if s.privateKey == nil {
		return "", newError(KindKey, "merchant private key not loaded", nil)
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", newError(KindSign, "failed to sign data", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks signature over data with the gateway public key. Malformed
// base64 and mismatches report false without an error.
func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	if s.publicKey == nil {
		return false, newError(KindKey, "gateway public key not loaded", nil)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) == 0 {
		return false, nil
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA256, digest[:], sig) == nil, nil
}

// HasPrivateKey reports whether outbound signing is possible.
func (s *Signer) HasPrivateKey() bool {
	return s.privateKey != nil
}

// HasPublicKey reports whether inbound verification is possible.
func (s *Signer) HasPublicKey() bool {
	return s.publicKey != nil
}

// LoadPrivateKey reads a PEM encoded RSA private key in PKCS#1 or PKCS#8 form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindKey, fmt.Sprintf("private key not found: %s", path), err)
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey parses PEM bytes into an RSA private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, newError(KindKey, "invalid private key: no PEM block", nil)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, newError(KindKey, "invalid private key", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, newError(KindKey, "private key is not RSA", nil)
	}
	return key, nil
}

// LoadPublicKey reads a PEM encoded RSA public key (PKIX, PKCS#1 or certificate).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindKey, fmt.Sprintf("public key not found: %s", path), err)
	}
	return ParsePublicKey(data)
}

// ParsePublicKey parses PEM bytes into an RSA public key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, newError(KindKey, "invalid public key: no PEM block", nil)
	}

	var parsed any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, newError(KindKey, "invalid certificate", err)
		}
		parsed = cert.PublicKey
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, newError(KindKey, "invalid public key", err)
		}
		parsed = key
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, newError(KindKey, "invalid public key", err)
		}
		parsed = key
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, newError(KindKey, "public key is not RSA", nil)
	}
	return key, nil
}

// GenerateKeyPair creates a new RSA key pair and returns the private key as
// PKCS#8 PEM and the public key as PKIX PEM.
func GenerateKeyPair(bits int) (privatePEM, publicPEM []byte, err error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, newError(KindKey, "failed to generate key pair", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, newError(KindKey, "failed to encode private key", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, newError(KindKey, "failed to encode public key", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

// SaveKeyPair generates a key pair and writes it to disk. The private key file
// is created with 0600 permissions.
func SaveKeyPair(privateKeyPath, publicKeyPath string, bits int) error {
	privatePEM, publicPEM, err := GenerateKeyPair(bits)
	if err != nil {
		return err
	}

	for _, p := range []string{privateKeyPath, publicKeyPath} {
		if dir := filepath.Dir(p); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return newError(KindKey, "failed to create key directory", err)
			}
		}
	}

	if err := os.WriteFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return newError(KindKey, "failed to write private key", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(privateKeyPath, 0o600); err != nil {
		return newError(KindKey, "failed to restrict private key permissions", err)
	}
	if err := os.WriteFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return newError(KindKey, "failed to write public key", err)
	}
	return nil
}

// Canonicalize encodes v to the exact bytes that get signed and sent: struct
// field order is kept and '/', non-ASCII and HTML characters are left unescaped.
// A []byte or json.RawMessage is returned unchanged.
func Canonicalize(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, newError(KindSign, "failed to encode request body", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
