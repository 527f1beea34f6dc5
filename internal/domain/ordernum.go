package domain

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const orderNumberPrefix = "3T"

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber builds a human-readable order identifier of the form
// 3T-<base36 millis>-<4 random base36 chars>. The random suffix keeps two
// orders created in the same millisecond distinct; global uniqueness is
// still enforced by the database index, with the caller retrying on
// collision.
func NewOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// fall back to nanos, still distinct enough for the retry loop
		n := uint64(now.UnixNano())
		for i := range buf {
			buf[i] = byte(n >> uint(i*8))
		}
	}
	for i := range buf {
		buf[i] = base36[int(buf[i])%len(base36)]
	}
	return orderNumberPrefix + "-" + ts + "-" + string(buf)
}
