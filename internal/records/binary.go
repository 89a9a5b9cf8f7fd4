// SPDX-License-Identifier: MIT
package records

import (
	"encoding/binary"
	"fmt"
)

// byteOrder is the order the native engine lays its fields out in. The
// engine is always loaded into the current process, so this is the host
// order.
var byteOrder = binary.NativeEndian

// Image is implemented by every record that has a native byte image.
type Image interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

var (
	_ Image = (*MathLibSetting)(nil)
	_ Image = (*ArtifactDetectSetting)(nil)
	_ Image = (*ShortArtifactDetectSetting)(nil)
	_ Image = (*MentalAndSpectralSetting)(nil)
	_ Image = (*OpStatus)(nil)
	_ Image = (*RawChannels)(nil)
	_ Image = (*MindData)(nil)
	_ Image = (*RawSpectVals)(nil)
	_ Image = (*SpectralDataPercents)(nil)
)

func encode(v any, size int) ([]byte, error) {
	b, err := binary.Append(make([]byte, 0, size), byteOrder, v)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("encoded %T is %d bytes, native layout is %d", v, len(b), size)
	}
	return b, nil
}

func decode(data []byte, v any, size int) error {
	if len(data) != size {
		return fmt.Errorf("cannot decode %T: got %d bytes, native layout is %d", v, len(data), size)
	}
	_, err := binary.Decode(data, byteOrder, v)
	return err
}

func (s MathLibSetting) MarshalBinary() ([]byte, error) { return encode(&s, MathLibSettingSize) }
func (s *MathLibSetting) UnmarshalBinary(data []byte) error {
	return decode(data, s, MathLibSettingSize)
}

func (s ArtifactDetectSetting) MarshalBinary() ([]byte, error) {
	return encode(&s, ArtifactDetectSettingSize)
}
func (s *ArtifactDetectSetting) UnmarshalBinary(data []byte) error {
	return decode(data, s, ArtifactDetectSettingSize)
}

func (s ShortArtifactDetectSetting) MarshalBinary() ([]byte, error) {
	return encode(&s, ShortArtifactDetectSettingSize)
}
func (s *ShortArtifactDetectSetting) UnmarshalBinary(data []byte) error {
	return decode(data, s, ShortArtifactDetectSettingSize)
}

func (s MentalAndSpectralSetting) MarshalBinary() ([]byte, error) {
	return encode(&s, MentalAndSpectralSettingSize)
}
func (s *MentalAndSpectralSetting) UnmarshalBinary(data []byte) error {
	return decode(data, s, MentalAndSpectralSettingSize)
}

func (s OpStatus) MarshalBinary() ([]byte, error) { return encode(&s, OpStatusSize) }
func (s *OpStatus) UnmarshalBinary(data []byte) error {
	return decode(data, s, OpStatusSize)
}

func (r RawChannels) MarshalBinary() ([]byte, error) { return encode(&r, RawChannelsSize) }
func (r *RawChannels) UnmarshalBinary(data []byte) error {
	return decode(data, r, RawChannelsSize)
}

func (m MindData) MarshalBinary() ([]byte, error) { return encode(&m, MindDataSize) }
func (m *MindData) UnmarshalBinary(data []byte) error {
	return decode(data, m, MindDataSize)
}

func (r RawSpectVals) MarshalBinary() ([]byte, error) { return encode(&r, RawSpectValsSize) }
func (r *RawSpectVals) UnmarshalBinary(data []byte) error {
	return decode(data, r, RawSpectValsSize)
}

func (p SpectralDataPercents) MarshalBinary() ([]byte, error) {
	return encode(&p, SpectralDataPercentsSize)
}
func (p *SpectralDataPercents) UnmarshalBinary(data []byte) error {
	return decode(data, p, SpectralDataPercentsSize)
}
