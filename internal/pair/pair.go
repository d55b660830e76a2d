// Package pair gives two user ids a single orientation-free identity.
//
// Every writer of crossed-path rows keys them by Canonicalize so a pair is
// never stored as both (a, b) and (b, a).
package pair

import "cmp"

// Canonicalize orders a and b so that lo <= hi.
func Canonicalize[T cmp.Ordered](a, b T) (lo, hi T) {
	if b < a {
		return b, a
	}
	return a, b
}

// Key is a canonical pair of user ids.
type Key[T cmp.Ordered] struct {
	Lo T
	Hi T
}

// NewKey builds the canonical key for a and b.
func NewKey[T cmp.Ordered](a, b T) Key[T] {
	lo, hi := Canonicalize(a, b)
	return Key[T]{Lo: lo, Hi: hi}
}

// IsSelf reports whether both sides are the same user. Self pairs are never recorded.
func (k Key[T]) IsSelf() bool {
	return k.Lo == k.Hi
}

// Contains reports whether id is one of the pair.
func (k Key[T]) Contains(id T) bool {
	return k.Lo == id || k.Hi == id
}
