package snowflake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeIsNow(t *testing.T) {
	sn := New(0)
	assert.WithinDuration(t, time.Now(), sn.Time(), 5*time.Millisecond)
}

func TestOrdering_AcrossMilliseconds(t *testing.T) {
	// An earlier snowflake with maximal low bits still sorts before a
	// later one with minimal low bits.
	earlier := New(0xffff)
	time.Sleep(2 * time.Millisecond)
	later := New(0)
	assert.Less(t, earlier, later)
}

func TestWithLowBits_PreservesTime(t *testing.T) {
	sn := New(0)
	replaced := sn.WithLowBits(0xffff)
	assert.Equal(t, sn.Time(), replaced.Time())
	assert.NotEqual(t, sn, replaced)
}

func TestWithLowBits_ReplacesAllSixteenBits(t *testing.T) {
	sn := New(0xabcd)
	replaced := sn.WithLowBits(0x1234)
	assert.Equal(t, int64(0x1234), replaced.Int64()&0xffff)
}

func TestInt64RoundTrip(t *testing.T) {
	sn := New(42)
	assert.Equal(t, sn, FromInt64(sn.Int64()))
}

func TestParseRoundTrip(t *testing.T) {
	sn := NewRandom()
	parsed, err := Parse(sn.String())
	require.NoError(t, err)
	assert.Equal(t, sn, parsed)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("not-a-number")
	assert.Error(t, err)
}
