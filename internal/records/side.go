// SPDX-License-Identifier: MIT
package records

import (
	"fmt"
	"strings"
)

// SideType identifies the physical channel a value pertains to. It is a C
// enum on the native side and therefore int sized.
type SideType int32

const (
	SideLeft SideType = iota
	SideRight
	SideNone
)

// String returns the native enumerator name.
func (s SideType) String() string {
	switch s {
	case SideLeft:
		return "LEFT"
	case SideRight:
		return "RIGHT"
	case SideNone:
		return "NONE"
	default:
		return fmt.Sprintf("SideType(%d)", int32(s))
	}
}

// ParseSide converts a case-insensitive name to a SideType.
func ParseSide(name string) (SideType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LEFT", "L":
		return SideLeft, nil
	case "RIGHT", "R":
		return SideRight, nil
	case "NONE", "":
		return SideNone, nil
	default:
		return SideNone, fmt.Errorf("unknown side %q", name)
	}
}
