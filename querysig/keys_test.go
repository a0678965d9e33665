package querysig

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Key pair and signature from the Binance API signing example.
const (
	testPublicKey = "MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQCbWoXkbbwfcZnLW43Vsh1YMu1W5a4reIHvcMYqFjWJl4huA7JKZdC/O3pmEqxdSGZPkerDoN70yfFUPJwKHF+Zc30CWSHTgN+ivR1W4EwyQd48b7WfdU6NVNu2p0p9B2dvcytsdIZ+FKjDwjXplw21//9zX7xLr2rF+YeP1mp20QIDAQAB"

	testPrivateKey = "MIICdgIBADANBgkqhkiG9w0BAQEFAASCAmAwggJcAgEAAoGBAJtaheRtvB9xmctbjdWyHVgy7Vblrit4ge9wxioWNYmXiG4Dskpl0L87emYSrF1IZk+R6sOg3vTJ8VQ8nAocX5lzfQJZIdOA36K9HVbgTDJB3jxvtZ91To1U27anSn0HZ29zK2x0hn4UqMPCNemXDbX//3NfvEuvasX5h4/WanbRAgMBAAECgYBhrrGxyC4Zt1x0ucSdMbmx05PYp+K0ArnwzIBNxlkzgsyOIFTi4tI27DcyJ1up6/Qo5B8xkt2eHbxYsyOKV/zjjNo7afmQ/woBPgCxuErNJsdo2g0nH0k8A4Pw0FcLQL4sQocyfYsFMNhP56SY5fkgRAdAYPJ5v5RG47dLVoMGYQJBANF69BOAa/V+wubh5d5+l04zDkt/xMq7AoeHbeABpEOAEVwEfYqrH2H/BreUod8LixC6CR1KZZ9s+nnSGd9kz+sCQQC92nGk32kU09OcXtQzRn1Fi2AHvsSShQ8rwf40Buxl0IZK6sQkkSb2Eg1bA+E5KfAbzfX2YziAH/KcsdaxZ2EzAkEAwlK3tpuMCplDviBSOBrgyzcLjLgC2zmt+AGGyKVdNwzHjb/QoeFqZGLKXWRw4NL5d1PMfrJ0IPdcR8PCInyHbwJAT2CqzT1fiQa73hBD9qBNNit83iAjvgMGAcydRRFz+2nBDEe19Hf/6zhG/zvTCfx/2JA3e2mmsOMqo9szIX9QwwJAVfTewPB76mTwrTDbvBXAAXRU1WKpmrDiKHCViRO8Z6iP/KwwQxqpGiZTXr6zN8onidVjRzWJHGcWq3cCGO0v9w=="

	testMessage = `a=b&c=["1","2","3"]&recvWindow=5000&timestamp=1499827319559`

	testSignature = "VI6k2ILEFuB2ltAIYHrEeFjlxq4ZMHdoPTMLxFyHrg1ylnMpFJo2J/YStRKRdEh0Pv+beVWje0Nz+rZ6z3RzPFFwFkgEGK4XT3PGnpYnZXWvvCBHhQg0OmypNftzktUxcekbazWvF4BSTxoFlIDYBdAt5L69lUnwY7GZ9pOXGoU="
)

func testKeys(t *testing.T) (Signer, Verifier) {
	t.Helper()

	priv, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)

	pub, err := ParsePublicKey(testPublicKey)
	require.NoError(t, err)

	signer, err := NewSigner(priv)
	require.NoError(t, err)

	verifier, err := NewVerifier(pub)
	require.NoError(t, err)

	return signer, verifier
}

func encodePKIX(t *testing.T, pub any) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(der)
}

func TestParsePublicKey(t *testing.T) {
	t.Run("known key", func(t *testing.T) {
		key, err := ParsePublicKey(testPublicKey)
		require.NoError(t, err)
		assert.Equal(t, 1024, key.N.BitLen())
		assert.Equal(t, 65537, key.E)
	})

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		_, err := ParsePublicKey("  " + testPublicKey + "\n")
		assert.NoError(t, err)
	})

	t.Run("generated 2048-bit key", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		key, err := ParsePublicKey(encodePKIX(t, &priv.PublicKey))
		require.NoError(t, err)
		assert.True(t, key.Equal(&priv.PublicKey))
	})

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "not base64", encoded: "!!not-base64!!"},
		{name: "base64 but not der", encoded: base64.StdEncoding.EncodeToString([]byte("hello"))},
		{name: "truncated der", encoded: testPublicKey[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.encoded)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}

	t.Run("non rsa key", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		_, err = ParsePublicKey(encodePKIX(t, pub))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("key below minimum size", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 512)
		if err != nil {
			t.Skip("runtime refuses to generate 512-bit keys")
		}

		_, err = ParsePublicKey(encodePKIX(t, &priv.PublicKey))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestLazyPublicKey(t *testing.T) {
	t.Run("same key for every caller", func(t *testing.T) {
		load := LazyPublicKey(testPublicKey)

		var wg sync.WaitGroup
		keys := make([]*rsa.PublicKey, 16)

		for i := range keys {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key, err := load()
				assert.NoError(t, err)
				keys[i] = key
			}(i)
		}
		wg.Wait()

		for _, key := range keys {
			assert.Same(t, keys[0], key)
		}
	})

	t.Run("error is sticky", func(t *testing.T) {
		load := LazyPublicKey("garbage")

		_, err1 := load()
		_, err2 := load()
		assert.ErrorIs(t, err1, ErrInvalidKey)
		assert.Same(t, err1, err2)
	})
}

func TestParsePrivateKey(t *testing.T) {
	t.Run("pkcs8", func(t *testing.T) {
		key, err := ParsePrivateKey(testPrivateKey)
		require.NoError(t, err)

		pub, err := ParsePublicKey(testPublicKey)
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(pub))
	})

	t.Run("pkcs1", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		encoded := base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(priv))

		key, err := ParsePrivateKey(encoded)
		require.NoError(t, err)
		assert.True(t, key.Equal(priv))
	})

	t.Run("non rsa key", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		der, err := x509.MarshalPKCS8PrivateKey(priv)
		require.NoError(t, err)

		_, err = ParsePrivateKey(base64.StdEncoding.EncodeToString(der))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParsePrivateKey("Zm9v")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestRSA(t *testing.T) {
	signer, verifier := testKeys(t)

	t.Run("known vector verifies", func(t *testing.T) {
		sig, err := base64.StdEncoding.DecodeString(testSignature)
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify([]byte(testMessage), sig))
	})

	t.Run("signing is deterministic", func(t *testing.T) {
		sig, err := signer.Sign([]byte(testMessage))
		require.NoError(t, err)

		assert.Equal(t, testSignature, base64.StdEncoding.EncodeToString(sig))
	})

	t.Run("round trip for arbitrary messages", func(t *testing.T) {
		messages := [][]byte{
			nil,
			[]byte("x"),
			[]byte(`task=["stake"]&walletAddress=0x0000000000000000000000000000000000000001`),
			make([]byte, 4096),
		}

		for _, m := range messages {
			sig, err := signer.Sign(m)
			require.NoError(t, err)
			assert.NoError(t, verifier.Verify(m, sig))
		}
	})

	t.Run("unrelated key fails", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)

		otherVerifier, err := NewVerifier(&other.PublicKey)
		require.NoError(t, err)

		sig, err := base64.StdEncoding.DecodeString(testSignature)
		require.NoError(t, err)

		assert.ErrorIs(t, otherVerifier.Verify([]byte(testMessage), sig), ErrInvalidSignature)
	})

	t.Run("different message fails", func(t *testing.T) {
		sig, err := signer.Sign([]byte("m1"))
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify([]byte("m2"), sig), ErrInvalidSignature)
	})

	t.Run("any single bit flip fails", func(t *testing.T) {
		sig, err := base64.StdEncoding.DecodeString(testSignature)
		require.NoError(t, err)

		for i := 0; i < len(sig)*8; i++ {
			flipped := append([]byte(nil), sig...)
			flipped[i/8] ^= 1 << (i % 8)

			assert.ErrorIs(t, verifier.Verify([]byte(testMessage), flipped), ErrInvalidSignature, "bit %d", i)
		}
	})

	t.Run("wrong length fails before verification", func(t *testing.T) {
		sig, err := base64.StdEncoding.DecodeString(testSignature)
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify([]byte(testMessage), sig[1:]), ErrInvalidSignature)
		assert.ErrorIs(t, verifier.Verify([]byte(testMessage), append(sig, 0)), ErrInvalidSignature)
		assert.ErrorIs(t, verifier.Verify([]byte(testMessage), nil), ErrInvalidSignature)
	})

	t.Run("nil keys", func(t *testing.T) {
		_, err := NewSigner(nil)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewVerifier(nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestLazyVerifier(t *testing.T) {
	t.Run("verifies with resolved key", func(t *testing.T) {
		v := LazyVerifier(LazyPublicKey(testPublicKey))

		sig, err := base64.StdEncoding.DecodeString(testSignature)
		require.NoError(t, err)

		assert.NoError(t, v.Verify([]byte(testMessage), sig))
	})

	t.Run("key error is reported", func(t *testing.T) {
		v := LazyVerifier(LazyPublicKey("bad"))

		err := v.Verify([]byte(testMessage), []byte("sig"))
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.NotErrorIs(t, err, ErrInvalidSignature)
	})
}
