package querysig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Exchange clients still ship 1024-bit keys, so the floor is lower than a
// fresh deployment would choose.
const minRSAKeyBits = 1024

// Signer produces RSASSA-PKCS1-v1_5 SHA-256 signatures.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// Verifier checks RSASSA-PKCS1-v1_5 SHA-256 signatures. Every failure is
// reported as ErrInvalidSignature.
type Verifier interface {
	Verify(message, signature []byte) error
}

// ParsePublicKey decodes a standard base64 DER SubjectPublicKeyInfo blob
// into an RSA public key.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidKey, err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected rsa public key, got %T", ErrInvalidKey, parsed)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return key, nil
}

// LazyPublicKey returns a handle that parses encoded on first call and
// returns the same key (or error) on every later call. The key is never
// reloaded and is safe to share between goroutines.
func LazyPublicKey(encoded string) func() (*rsa.PublicKey, error) {
	return sync.OnceValues(func() (*rsa.PublicKey, error) {
		return ParsePublicKey(encoded)
	})
}

// ParsePrivateKey decodes a standard base64 PKCS#8 (or PKCS#1) DER blob
// into an RSA private key.
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidKey, err)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		pkcs1, pkcs1Err := x509.ParsePKCS1PrivateKey(der)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}

		parsed = pkcs1
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected rsa private key, got %T", ErrInvalidKey, parsed)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return key, nil
}

// --- RSASSA-PKCS1-v1_5 SHA-256 ---

type rsaSigner struct {
	key *rsa.PrivateKey
}

// NewSigner creates a Signer for the given RSA private key.
func NewSigner(key *rsa.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaSigner{key: key}, nil
}

func (s *rsaSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)

	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

type rsaVerifier struct {
	key *rsa.PublicKey
}

// NewVerifier creates a Verifier for the given RSA public key.
func NewVerifier(key *rsa.PublicKey) (Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaVerifier{key: key}, nil
}

func (v *rsaVerifier) Verify(message, signature []byte) error {
	// A PKCS#1 v1.5 signature is exactly one modulus wide.
	if len(signature) != v.key.Size() {
		return ErrInvalidSignature
	}

	digest := sha256.Sum256(message)

	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], signature); err != nil {
		return ErrInvalidSignature
	}

	return nil
}

// LazyVerifier returns a Verifier backed by key, which is resolved on the
// first verification. A key error is reported as ErrInvalidKey on every call
// rather than as a signature mismatch.
func LazyVerifier(key func() (*rsa.PublicKey, error)) Verifier {
	return &lazyVerifier{
		load: sync.OnceValues(func() (Verifier, error) {
			pub, err := key()
			if err != nil {
				return nil, err
			}

			return NewVerifier(pub)
		}),
	}
}

type lazyVerifier struct {
	load func() (Verifier, error)
}

func (v *lazyVerifier) Verify(message, signature []byte) error {
	verifier, err := v.load()
	if err != nil {
		return err
	}

	return verifier.Verify(message, signature)
}
