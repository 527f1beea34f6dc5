package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^3T-[0-9A-Z]+-[0-9A-Z]{4}$`)
	now := time.Now()
	for i := 0; i < 50; i++ {
		n := NewOrderNumber(now)
		require.Regexp(t, re, n)
	}
}

func TestNewOrderNumberSameMillisecondDiffers(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	dupes := 0
	for i := 0; i < 200; i++ {
		n := NewOrderNumber(now)
		if seen[n] {
			dupes++
		}
		seen[n] = true
	}
	// The random suffix spans 36^4 values; a birthday collision across 200
	// draws is possible but two or more would point at a broken source.
	assert.LessOrEqual(t, dupes, 1)
}

func TestNewOrderNumberEncodesTimestamp(t *testing.T) {
	early := NewOrderNumber(time.UnixMilli(1_000))
	late := NewOrderNumber(time.UnixMilli(2_000_000_000_000))
	assert.NotEqual(t, early[:len(early)-5], late[:len(late)-5])
}
