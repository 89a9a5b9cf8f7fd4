// SPDX-License-Identifier: MIT
/*
Package bridge moves nested sample records across the foreign-function
boundary.

The native engine expects a sequence of records as an array of pointers, each
pointing at the first sample of its record. Flatten builds that shape in C
memory from a [][]float64:

	rows:     [a0 a1 a2] [] [b0 b1]

	samples:  +----+----+----+----+----+
	          | a0 | a1 | a2 | b0 | b1 |     8 bytes x total samples
	          +----+----+----+----+----+
	          ^              ^
	          |    +---------+
	          |    |    +----+
	ptrs:     +----+----+----+
	          | p0 | p1 | p2 |               pointer width x len(rows)
	          +----+----+----+

A record of length zero keeps its slot (p1 above points at where its samples
would start), so entry i always belongs to record i.

The Handle owns both blocks. It moves through three states, Unallocated,
Allocated and Released, and Release frees each block exactly once. The
conversion is one way: Reconstruct always reports errors.ErrUnsupported, and
edits the native side makes through the pointers are never copied back.

The pointers stay valid from Flatten until Release. The native side may only
read through them for the duration of the call the handle was passed to.
*/
package bridge

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrAllocFailed is returned when the allocator cannot satisfy a request.
	ErrAllocFailed = errors.New("bridge: foreign memory allocation failed")

	// ErrReconstructUnsupported is returned by every call to Reconstruct.
	ErrReconstructUnsupported = fmt.Errorf("bridge: native to managed reconstruction: %w", errors.ErrUnsupported)
)

const (
	sampleSize  = unsafe.Sizeof(float64(0))
	pointerSize = unsafe.Sizeof(unsafe.Pointer(nil))
)

// State is the lifecycle position of a Handle.
type State int32

const (
	Unallocated State = iota
	Allocated
	Released
)

func (s State) String() string {
	switch s {
	case Unallocated:
		return "unallocated"
	case Allocated:
		return "allocated"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handle owns the sample block and the pointer array built by Flatten.
// A nil *Handle stands for "no data" and is accepted everywhere.
type Handle struct {
	alloc   Allocator
	ptrs    unsafe.Pointer
	samples unsafe.Pointer
	rows    int
	total   int
	state   atomic.Int32
}

// Flatten copies rows into C heap memory. See FlattenWith.
func Flatten(rows [][]float64) (*Handle, error) {
	return FlattenWith(CHeap{}, rows)
}

// FlattenWith copies rows into memory obtained from a and returns the
// owning handle. A nil rows yields a nil handle and no allocation. On error
// nothing stays allocated.
func FlattenWith(a Allocator, rows [][]float64) (*Handle, error) {
	if rows == nil {
		return nil, nil
	}

	total := 0
	for _, row := range rows {
		if len(row) > math.MaxInt/int(sampleSize)-total {
			return nil, fmt.Errorf("%w: %d records exceed the addressable sample count", ErrAllocFailed, len(rows))
		}
		total += len(row)
	}

	samples, err := a.Alloc(uintptr(total) * sampleSize)
	if err != nil {
		return nil, fmt.Errorf("allocating sample block of %d values: %w", total, err)
	}
	ptrs, err := a.Alloc(uintptr(len(rows)) * pointerSize)
	if err != nil {
		a.Free(samples)
		return nil, fmt.Errorf("allocating pointer array of %d entries: %w", len(rows), err)
	}

	block := unsafe.Slice((*float64)(samples), total)
	index := unsafe.Slice((*unsafe.Pointer)(ptrs), len(rows))
	off := 0
	for i, row := range rows {
		copy(block[off:off+len(row)], row)
		index[i] = unsafe.Add(samples, uintptr(off)*sampleSize)
		off += len(row)
	}

	h := &Handle{
		alloc:   a,
		ptrs:    ptrs,
		samples: samples,
		rows:    len(rows),
		total:   total,
	}
	h.state.Store(int32(Allocated))
	return h, nil
}

// Ptr returns the address of the pointer array, the value passed to the
// native call. It is nil for a nil or released handle.
func (h *Handle) Ptr() unsafe.Pointer {
	if h == nil || h.State() != Allocated {
		return nil
	}
	return h.ptrs
}

// Len returns the number of entries in the pointer array.
func (h *Handle) Len() int {
	if h == nil {
		return 0
	}
	return h.rows
}

// Samples returns the number of values in the sample block.
func (h *Handle) Samples() int {
	if h == nil {
		return 0
	}
	return h.total
}

// State reports where the handle is in its lifecycle.
func (h *Handle) State() State {
	if h == nil {
		return Unallocated
	}
	return State(h.state.Load())
}

// Release frees the sample block and then the pointer array. It is a no-op
// for a nil handle and for a handle that was already released.
func (h *Handle) Release() {
	if h == nil || !h.state.CompareAndSwap(int32(Allocated), int32(Released)) {
		return
	}
	h.alloc.Free(h.samples)
	h.alloc.Free(h.ptrs)
	h.samples = nil
	h.ptrs = nil
}

// Reconstruct would rebuild the nested records from native memory. The
// bridge is write-only, so it always returns ErrReconstructUnsupported.
func Reconstruct(h *Handle) ([][]float64, error) {
	return nil, ErrReconstructUnsupported
}
