package querysig

import (
	"fmt"
	"math"
	"math/bits"
	"net/url"
	"strconv"
	"time"
)

// Query parameter names carrying the freshness claim.
const (
	ParamRecvWindow = "recvWindow"
	ParamTimestamp  = "timestamp"
)

const (
	// MaxRecvWindow is the largest recvWindow, in milliseconds, a client may declare.
	MaxRecvWindow uint64 = 10_000

	// Grace is the fixed tolerance, in milliseconds, for timestamps behind
	// server time.
	Grace uint64 = 3_000
)

// CheckFreshness validates a client freshness claim against server time now.
// All values are milliseconds. The checks run in order and stop at the first
// failure:
//
//  1. recvWindow <= MaxRecvWindow, else ErrInvalidRecvWindow
//  2. now - Grace < timestamp, else ErrInvalidTimestamp
//  3. timestamp < now + recvWindow, else ErrInvalidTimestamp
//
// Both bounds saturate instead of wrapping.
func CheckFreshness(recvWindow, timestamp, now uint64) error {
	if recvWindow > MaxRecvWindow {
		return reject(ReasonInvalidRecvWindow, ParamRecvWindow,
			fmt.Errorf("%d > %d", recvWindow, MaxRecvWindow))
	}

	var lower uint64
	if now > Grace {
		lower = now - Grace
	}

	if timestamp <= lower {
		return reject(ReasonInvalidTimestamp, ParamTimestamp,
			fmt.Errorf("%d is older than %d", timestamp, lower))
	}

	upper, carry := bits.Add64(now, recvWindow, 0)
	if carry != 0 {
		upper = math.MaxUint64
	}

	if timestamp >= upper {
		return reject(ReasonInvalidTimestamp, ParamTimestamp,
			fmt.Errorf("%d is not before %d", timestamp, upper))
	}

	return nil
}

// UnixMilli returns t as unsigned milliseconds since the epoch, clamping
// times before 1970 to zero.
func UnixMilli(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}

	return uint64(ms)
}

// FreshnessParams extracts recvWindow and timestamp from rawQuery. A missing,
// repeated or non-numeric parameter yields an ErrInvalidArgument rejection
// naming the field.
func FreshnessParams(rawQuery string) (recvWindow, timestamp uint64, err error) {
	// Pairs that fail to unescape are dropped and surface as missing.
	values, _ := url.ParseQuery(rawQuery)

	if recvWindow, err = uintParam(values, ParamRecvWindow); err != nil {
		return 0, 0, err
	}

	if timestamp, err = uintParam(values, ParamTimestamp); err != nil {
		return 0, 0, err
	}

	return recvWindow, timestamp, nil
}

func uintParam(values url.Values, name string) (uint64, error) {
	raw, ok := values[name]
	if !ok || len(raw) == 0 {
		return 0, reject(ReasonInvalidArgument, name, ErrMissingParam)
	}

	if len(raw) > 1 {
		return 0, reject(ReasonInvalidArgument, name,
			fmt.Errorf("%w: repeated %d times", ErrMalformedParam, len(raw)))
	}

	// ParseUint rejects signs, so only decimal digits get through.
	v, err := strconv.ParseUint(raw[0], 10, 64)
	if err != nil {
		return 0, reject(ReasonInvalidArgument, name,
			fmt.Errorf("%w: not an unsigned integer", ErrMalformedParam))
	}

	return v, nil
}
