package querysig

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGate(t *testing.T) {
	t.Run("nil verifier", func(t *testing.T) {
		_, err := NewGate(GateConfig{})
		assert.ErrorIs(t, err, ErrNoVerifier)
	})

	t.Run("defaults", func(t *testing.T) {
		_, verifier := testKeys(t)

		gate, err := NewGate(GateConfig{Verifier: verifier})
		require.NoError(t, err)
		assert.Equal(t, DefaultHeader, gate.header)
		assert.NotNil(t, gate.now)
	})
}

func TestGateCheck(t *testing.T) {
	signer, verifier := testKeys(t)

	gate, err := NewGate(GateConfig{Verifier: verifier})
	require.NoError(t, err)

	serverTime := time.UnixMilli(1499827319559)

	signed := func(t *testing.T, rawQuery string) string {
		t.Helper()

		sig, err := SignQuery(signer, rawQuery)
		require.NoError(t, err)

		return sig
	}

	query := func(recvWindow, timestamp int64) string {
		return "a=b&recvWindow=" + strconv.FormatInt(recvWindow, 10) +
			"&timestamp=" + strconv.FormatInt(timestamp, 10)
	}

	t.Run("known vector authenticates", func(t *testing.T) {
		rawQuery := "a=b&c=%5B%221%22,%222%22,%223%22%5D&recvWindow=5000&timestamp=1499827319559"
		assert.NoError(t, gate.Check(testSignature, rawQuery, serverTime))
	})

	t.Run("unloadable key is not a rejection", func(t *testing.T) {
		brokenGate, err := NewGate(GateConfig{Verifier: LazyVerifier(LazyPublicKey("not-a-key"))})
		require.NoError(t, err)

		err = brokenGate.Check("AAAA", "recvWindow=5000&timestamp=1", serverTime)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.NotErrorIs(t, err, ErrInvalidSignature)

		_, ok := ReasonOf(err)
		assert.False(t, ok)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	})

	t.Run("known vector against unrelated key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		otherVerifier, err := NewVerifier(&other.PublicKey)
		require.NoError(t, err)

		otherGate, err := NewGate(GateConfig{Verifier: otherVerifier})
		require.NoError(t, err)

		err = otherGate.Check(testSignature, url.PathEscape(testMessage), serverTime)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	ms := serverTime.UnixMilli()

	tests := []struct {
		name       string
		signature  func(rawQuery string) string
		rawQuery   string
		wantReason Reason
		wantField  string
		wantCause  error
	}{
		{
			name:       "missing signature header",
			signature:  func(string) string { return "" },
			rawQuery:   query(5000, ms),
			wantReason: ReasonInvalidSignature,
			wantCause:  ErrMissingSignature,
		},
		{
			name:       "missing query",
			signature:  func(string) string { return testSignature },
			rawQuery:   "",
			wantReason: ReasonInvalidSignature,
			wantCause:  ErrNoQuery,
		},
		{
			name:       "malformed query",
			signature:  func(string) string { return testSignature },
			rawQuery:   "a=%zz",
			wantReason: ReasonInvalidSignature,
			wantCause:  ErrMalformedQuery,
		},
		{
			name:       "signature not base64",
			signature:  func(string) string { return "%%%" },
			rawQuery:   query(5000, ms),
			wantReason: ReasonInvalidSignature,
		},
		{
			name:       "signature over other query",
			signature:  func(string) string { return signed(t, query(5000, ms+1)) },
			rawQuery:   query(5000, ms),
			wantReason: ReasonInvalidSignature,
		},
		{
			name:       "signature checked before params",
			signature:  func(string) string { return testSignature },
			rawQuery:   "a=b",
			wantReason: ReasonInvalidSignature,
		},
		{
			name:       "missing timestamp",
			signature:  func(q string) string { return signed(t, q) },
			rawQuery:   "a=b&recvWindow=5000",
			wantReason: ReasonInvalidArgument,
			wantField:  ParamTimestamp,
			wantCause:  ErrMissingParam,
		},
		{
			name:       "non numeric recv window",
			signature:  func(q string) string { return signed(t, q) },
			rawQuery:   "a=b&recvWindow=five&timestamp=" + strconv.FormatInt(ms, 10),
			wantReason: ReasonInvalidArgument,
			wantField:  ParamRecvWindow,
			wantCause:  ErrMalformedParam,
		},
		{
			name:       "recv window above max",
			signature:  func(q string) string { return signed(t, q) },
			rawQuery:   query(11_000, ms),
			wantReason: ReasonInvalidRecvWindow,
			wantField:  ParamRecvWindow,
		},
		{
			name:       "timestamp too old",
			signature:  func(q string) string { return signed(t, q) },
			rawQuery:   query(5000, ms-4000),
			wantReason: ReasonInvalidTimestamp,
			wantField:  ParamTimestamp,
		},
		{
			name:       "timestamp too far ahead",
			signature:  func(q string) string { return signed(t, q) },
			rawQuery:   query(5000, ms+5001),
			wantReason: ReasonInvalidTimestamp,
			wantField:  ParamTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(tt.signature(tt.rawQuery), tt.rawQuery, serverTime)
			require.Error(t, err)

			var rej *Rejection
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantReason, rej.Reason)
			assert.Equal(t, tt.wantField, rej.Field)
			assert.ErrorIs(t, err, tt.wantReason.Err())

			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
		})
	}

	t.Run("recv window at max is accepted", func(t *testing.T) {
		q := query(10_000, ms)
		assert.NoError(t, gate.Check(signed(t, q), q, serverTime))
	})
}

func TestGateAuthenticate(t *testing.T) {
	signer, verifier := testKeys(t)

	now := time.UnixMilli(1_700_000_000_000)

	gate, err := NewGate(GateConfig{
		Verifier: verifier,
		Header:   "X-Api-Signature",
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	t.Run("signed request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/task/completion?task=%5B%22stake%22%5D", nil)

		err := SignRequest(req, SignConfig{
			Signer:     signer,
			Header:     "X-Api-Signature",
			RecvWindow: 5 * time.Second,
			Now:        func() time.Time { return now },
		})
		require.NoError(t, err)

		assert.NoError(t, gate.Authenticate(req))
	})

	t.Run("signature in default header is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/task/completion?a=1", nil)

		err := SignRequest(req, SignConfig{
			Signer:     signer,
			RecvWindow: 5 * time.Second,
			Now:        func() time.Time { return now },
		})
		require.NoError(t, err)

		err = gate.Authenticate(req)
		assert.ErrorIs(t, err, ErrMissingSignature)
	})
}
