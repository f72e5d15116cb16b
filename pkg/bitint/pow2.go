// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-two helpers used to validate transform
windows and summary bin counts.

IsPowerOfTwo runs in constant time without allocating, so it is safe to call
from the audio callback.
*/
package bitint

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two has
// a single bit set, so clearing its lowest set bit with n&(n-1) leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
