package pair

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int64
		lo, hi int64
	}{
		{name: "already ordered", a: 1, b: 2, lo: 1, hi: 2},
		{name: "reversed", a: 9, b: 3, lo: 3, hi: 9},
		{name: "equal", a: 5, b: 5, lo: 5, hi: 5},
		{name: "negative", a: -1, b: -7, lo: -7, hi: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := Canonicalize(tt.a, tt.b)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestCanonicalize_Symmetric(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a, b := r.Int63(), r.Int63()
		lo1, hi1 := Canonicalize(a, b)
		lo2, hi2 := Canonicalize(b, a)
		assert.Equal(t, lo1, lo2)
		assert.Equal(t, hi1, hi2)
		assert.LessOrEqual(t, lo1, hi1)
	}
}

func TestCanonicalize_Strings(t *testing.T) {
	lo, hi := Canonicalize("user-b", "user-a")
	assert.Equal(t, "user-a", lo)
	assert.Equal(t, "user-b", hi)

	// natural string order, not numeric
	lo, hi = Canonicalize("10", "9")
	assert.Equal(t, "10", lo)
	assert.Equal(t, "9", hi)
}

func TestKey(t *testing.T) {
	k := NewKey[int64](8, 2)
	assert.Equal(t, Key[int64]{Lo: 2, Hi: 8}, k)
	assert.Equal(t, k, NewKey[int64](2, 8))
	assert.True(t, k.Contains(8))
	assert.False(t, k.Contains(3))
	assert.False(t, k.IsSelf())
	assert.True(t, NewKey(4, 4).IsSelf())
}
