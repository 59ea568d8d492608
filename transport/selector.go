// File: transport/selector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker selection. The selector is deliberately not a pure function of
// the key: the second hash folds in a call-local identity and a
// high-resolution timestamp, so repeated calls for the same endpoint
// spread across workers instead of pinning a hot endpoint to one loop.
// Workers are functionally identical, so losing affinity costs nothing.

package transport

import (
	"encoding/binary"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// hashState is the salt structure for the second hash stage: a stack
// pointer that differs between concurrent calls, the capture time, and
// the 64-bit hash of the key itself.
type hashState struct {
	self    uintptr
	now     int64
	keyHash uint64
}

// selectIndex maps a shard key to a worker index in [0, n). A nil key
// is the sentinel for non-endpoint work and is legal. n must be >= 1.
func selectIndex(key []byte, n int) int {
	var hs hashState
	hs.self = uintptr(unsafe.Pointer(&hs))
	hs.now = time.Now().UnixNano()
	hs.keyHash = xxhash.Sum64(key)

	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(hs.self))
	binary.LittleEndian.PutUint64(buf[8:], uint64(hs.now))
	binary.LittleEndian.PutUint64(buf[16:], hs.keyHash)
	return int(murmur3.Sum64(buf[:]) % uint64(n))
}
