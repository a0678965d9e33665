package querysig

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFreshness(t *testing.T) {
	const now uint64 = 1_700_000_000_000

	tests := []struct {
		name       string
		recvWindow uint64
		timestamp  uint64
		now        uint64
		wantErr    error
	}{
		{name: "now is fresh", recvWindow: 5000, timestamp: now, now: now},
		{name: "max recv window accepted", recvWindow: 10_000, timestamp: now, now: now},
		{name: "recv window above max", recvWindow: 10_001, timestamp: now, now: now, wantErr: ErrInvalidRecvWindow},
		{name: "recv window checked before timestamp", recvWindow: 10_001, timestamp: 0, now: now, wantErr: ErrInvalidRecvWindow},
		{name: "inside grace", recvWindow: 5000, timestamp: now - 2999, now: now},
		{name: "at grace boundary", recvWindow: 5000, timestamp: now - 3000, now: now, wantErr: ErrInvalidTimestamp},
		{name: "too old", recvWindow: 5000, timestamp: now - 4000, now: now, wantErr: ErrInvalidTimestamp},
		{name: "just inside window", recvWindow: 5000, timestamp: now + 4999, now: now},
		{name: "at window boundary", recvWindow: 5000, timestamp: now + 5000, now: now, wantErr: ErrInvalidTimestamp},
		{name: "beyond window", recvWindow: 5000, timestamp: now + 5001, now: now, wantErr: ErrInvalidTimestamp},
		{name: "zero window accepts past within grace", recvWindow: 0, timestamp: now - 1, now: now},
		{name: "zero window rejects now", recvWindow: 0, timestamp: now, now: now, wantErr: ErrInvalidTimestamp},
		{name: "now below grace saturates", recvWindow: 100, timestamp: 1, now: 10},
		{name: "now below grace rejects zero", recvWindow: 100, timestamp: 0, now: 10, wantErr: ErrInvalidTimestamp},
		{name: "upper bound saturates", recvWindow: 10_000, timestamp: math.MaxUint64 - 1, now: math.MaxUint64 - 5},
		{name: "saturated upper bound is exclusive", recvWindow: 10_000, timestamp: math.MaxUint64, now: math.MaxUint64 - 5, wantErr: ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFreshness(tt.recvWindow, tt.timestamp, tt.now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)

			reason, ok := ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantErr, reason.Err())
		})
	}
}

func TestFreshnessParams(t *testing.T) {
	t.Run("both present", func(t *testing.T) {
		recvWindow, timestamp, err := FreshnessParams("a=b&recvWindow=5000&timestamp=1499827319559")
		require.NoError(t, err)
		assert.Equal(t, uint64(5000), recvWindow)
		assert.Equal(t, uint64(1499827319559), timestamp)
	})

	tests := []struct {
		name      string
		rawQuery  string
		wantField string
		wantCause error
	}{
		{name: "missing timestamp", rawQuery: "recvWindow=5000", wantField: ParamTimestamp, wantCause: ErrMissingParam},
		{name: "missing recv window", rawQuery: "timestamp=1", wantField: ParamRecvWindow, wantCause: ErrMissingParam},
		{name: "negative timestamp", rawQuery: "recvWindow=1&timestamp=-1", wantField: ParamTimestamp, wantCause: ErrMalformedParam},
		{name: "signed recv window", rawQuery: "recvWindow=%2B1&timestamp=1", wantField: ParamRecvWindow, wantCause: ErrMalformedParam},
		{name: "decimal timestamp", rawQuery: "recvWindow=1&timestamp=1.5", wantField: ParamTimestamp, wantCause: ErrMalformedParam},
		{name: "empty timestamp", rawQuery: "recvWindow=1&timestamp=", wantField: ParamTimestamp, wantCause: ErrMalformedParam},
		{name: "overflowing timestamp", rawQuery: "recvWindow=1&timestamp=18446744073709551616", wantField: ParamTimestamp, wantCause: ErrMalformedParam},
		{name: "repeated timestamp", rawQuery: "recvWindow=1&timestamp=1&timestamp=2", wantField: ParamTimestamp, wantCause: ErrMalformedParam},
		{name: "name is case sensitive", rawQuery: "recvwindow=1&timestamp=1", wantField: ParamRecvWindow, wantCause: ErrMissingParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FreshnessParams(tt.rawQuery)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.ErrorIs(t, err, tt.wantCause)

			var rej *Rejection
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantField, rej.Field)
		})
	}
}

func TestUnixMilli(t *testing.T) {
	assert.Equal(t, uint64(1499827319559), UnixMilli(time.UnixMilli(1499827319559)))
	assert.Equal(t, uint64(0), UnixMilli(time.UnixMilli(-5)))
}
