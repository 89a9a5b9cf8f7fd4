// SPDX-License-Identifier: MIT
package records

import "bytes"

// ErrorMsgSize is the capacity of OpStatus.ErrorMsg including the NUL.
const ErrorMsgSize = 512

// OpStatus is filled by every native call. Unlike the settings records it is
// naturally aligned: one byte of Success, three bytes of padding, the error
// code at offset 4 and the message buffer at offset 8.
type OpStatus struct {
	Success  bool
	_        [3]byte
	Error    uint32
	ErrorMsg [ErrorMsgSize]byte
}

// SetMessage stores msg in the fixed buffer. Anything beyond
// ErrorMsgSize-1 bytes is dropped and the remainder of the buffer is zeroed,
// so the buffer is always NUL terminated.
func (s *OpStatus) SetMessage(msg string) {
	n := copy(s.ErrorMsg[:ErrorMsgSize-1], msg)
	clear(s.ErrorMsg[n:])
}

// Message returns the buffer contents up to the first NUL. Bytes are
// returned unchanged; the native side uses a single-byte code page.
func (s *OpStatus) Message() string {
	if i := bytes.IndexByte(s.ErrorMsg[:], 0); i >= 0 {
		return string(s.ErrorMsg[:i])
	}
	return string(s.ErrorMsg[:])
}

// Reset returns the status to its zero state before it is lent to a call.
func (s *OpStatus) Reset() {
	*s = OpStatus{}
}
