// SPDX-License-Identifier: MIT
package mathlib

import (
	"fmt"

	"signalmath/internal/records"
)

// StatusError is a failure reported by the engine through OpStatus.
type StatusError struct {
	Op      string // entry point that failed
	Code    uint32
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mathlib: %s failed with code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("mathlib: %s failed with code %d: %s", e.Op, e.Code, e.Message)
}

// checkStatus turns the outcome of a call into an error. A call fails when
// either its return value or the status says so.
func checkStatus(op string, ok bool, st *records.OpStatus) error {
	if ok && st.Success {
		return nil
	}
	return &StatusError{Op: op, Code: st.Error, Message: st.Message()}
}
