// Package snowflake implements the 64-bit time-ordered identifiers used
// across the mirror.
//
// The top 48 bits hold a millisecond Unix timestamp, the bottom 16 bits are
// uniqueness bits with no further meaning. Two snowflakes minted a
// millisecond apart compare correctly regardless of their low bits.
package snowflake

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// Snowflake is a time-ordered 64-bit identifier.
type Snowflake int64

// New creates a Snowflake for the current time with the given uniqueness bits.
func New(uid uint16) Snowflake {
	millis := time.Now().UnixMilli()
	return Snowflake(millis<<16 | int64(uid))
}

// NewRandom creates a Snowflake for the current time with random
// uniqueness bits.
func NewRandom() Snowflake {
	return New(uint16(rand.Uint32()))
}

// WithLowBits returns a copy with the uniqueness bits replaced.
// The embedded timestamp is unchanged.
func (s Snowflake) WithLowBits(uid uint16) Snowflake {
	return Snowflake(int64(s)&^0xffff | int64(uid))
}

// Time returns the time this snowflake was minted at, with millisecond
// precision.
func (s Snowflake) Time() time.Time {
	return time.UnixMilli(int64(s) >> 16)
}

// Int64 returns the snowflake as a plain signed integer for storage.
func (s Snowflake) Int64() int64 {
	return int64(s)
}

// FromInt64 reconstructs a Snowflake from its stored representation.
func FromInt64(v int64) Snowflake {
	return Snowflake(v)
}

func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// Parse parses the decimal form produced by String.
func Parse(v string) (Snowflake, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return Snowflake(n), nil
}
