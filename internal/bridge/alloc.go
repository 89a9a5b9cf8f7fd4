// SPDX-License-Identifier: MIT
package bridge

/*
#include <stdlib.h>

// cgo's own C.malloc aborts the process on exhaustion. Calling malloc through
// a helper keeps the NULL return so it can be reported as an error.
static void* bridge_malloc(size_t n) {
	return malloc(n);
}

static void bridge_free(void* p) {
	free(p);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Allocator hands out memory the native side can read. A block must be
// returned to the Allocator that produced it.
type Allocator interface {
	Alloc(size uintptr) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

// CHeap allocates from the C heap with malloc and free.
type CHeap struct{}

var _ Allocator = CHeap{}

// Alloc returns size bytes of uninitialised C memory. A zero size still
// yields a distinct, non-nil block.
func (CHeap) Alloc(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		size = 1
	}
	p := C.bridge_malloc(C.size_t(size))
	if p == nil {
		return nil, fmt.Errorf("%w: malloc(%d)", ErrAllocFailed, size)
	}
	return p, nil
}

// Free releases a block obtained from Alloc. Free(nil) does nothing.
func (CHeap) Free(p unsafe.Pointer) {
	if p != nil {
		C.bridge_free(p)
	}
}
