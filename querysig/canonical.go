package querysig

import (
	"fmt"
	"net/url"
)

// CanonicalMessage returns the bytes a client signed for rawQuery: the raw
// query percent-decoded exactly once. Parameter order, repeated parameters
// and structural characters such as embedded JSON are kept as sent, and '+'
// is not turned into a space.
//
// An empty query has no canonical form and yields ErrNoQuery.
func CanonicalMessage(rawQuery string) ([]byte, error) {
	if rawQuery == "" {
		return nil, ErrNoQuery
	}

	decoded, err := url.PathUnescape(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}

	return []byte(decoded), nil
}
