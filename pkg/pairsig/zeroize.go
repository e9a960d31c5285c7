package pairsig

import "runtime"

// ZeroizeBytes overwrites the provided slice with zeros and prevents compiler
// dead store elimination using runtime.KeepAlive.
//
// This follows the pattern from golang/go#33325. It cannot guarantee that no
// copy survives elsewhere in memory, since the garbage collector may have
// moved the data, but it clears the buffer the caller still owns.
func ZeroizeBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
