// SPDX-License-Identifier: MIT
package records

import (
	"encoding/binary"
	"reflect"
)

// Field is one member of a native record image.
type Field struct {
	Name   string // "_" for padding
	Offset int
	Size   int
}

// Layout describes the byte image of a fixed-size record.
type Layout struct {
	Name   string
	Size   int
	Packed bool // one-byte packing on the native side
	Fields []Field
}

// Layouts lists every fixed-size record in the order the engine's header
// declares them.
func Layouts() []Layout {
	return []Layout{
		layoutOf(MathLibSetting{}, true),
		layoutOf(ArtifactDetectSetting{}, true),
		layoutOf(ShortArtifactDetectSetting{}, true),
		layoutOf(MentalAndSpectralSetting{}, true),
		layoutOf(OpStatus{}, false),
		layoutOf(RawChannels{}, false),
		layoutOf(MindData{}, false),
		layoutOf(RawSpectVals{}, false),
		layoutOf(SpectralDataPercents{}, false),
	}
}

// layoutOf walks the struct fields in image order. encoding/binary writes
// fields back to back, so offsets are running sums of field sizes.
func layoutOf(v any, packed bool) Layout {
	t := reflect.TypeOf(v)
	l := Layout{Name: t.Name(), Packed: packed}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		size := binary.Size(reflect.Zero(f.Type).Interface())
		l.Fields = append(l.Fields, Field{Name: f.Name, Offset: l.Size, Size: size})
		l.Size += size
	}
	return l
}
