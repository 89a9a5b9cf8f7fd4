// SPDX-License-Identifier: MIT
package records

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeSizes(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int
	}{
		{"MathLibSetting", &MathLibSetting{}, MathLibSettingSize},
		{"ArtifactDetectSetting", &ArtifactDetectSetting{}, ArtifactDetectSettingSize},
		{"ShortArtifactDetectSetting", &ShortArtifactDetectSetting{}, ShortArtifactDetectSettingSize},
		{"MentalAndSpectralSetting", &MentalAndSpectralSetting{}, MentalAndSpectralSettingSize},
		{"OpStatus", &OpStatus{}, OpStatusSize},
		{"RawChannels", &RawChannels{}, RawChannelsSize},
		{"MindData", &MindData{}, MindDataSize},
		{"RawSpectVals", &RawSpectVals{}, RawSpectValsSize},
		{"SpectralDataPercents", &SpectralDataPercents{}, SpectralDataPercentsSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, binary.Size(tt.v))

			img, err := tt.v.(Image).MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, img, tt.want)
		})
	}
}

// Naturally aligned records are filled in place by the engine, so their Go
// memory layout has to match the C one as well.
func TestInPlaceLayout(t *testing.T) {
	var st OpStatus
	assert.Equal(t, uintptr(OpStatusSize), unsafe.Sizeof(st))
	assert.Equal(t, uintptr(0), unsafe.Offsetof(st.Success))
	assert.Equal(t, uintptr(4), unsafe.Offsetof(st.Error))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(st.ErrorMsg))

	assert.Equal(t, uintptr(RawChannelsSize), unsafe.Sizeof(RawChannels{}))
	assert.Equal(t, uintptr(MindDataSize), unsafe.Sizeof(MindData{}))
	assert.Equal(t, uintptr(RawSpectValsSize), unsafe.Sizeof(RawSpectVals{}))
	assert.Equal(t, uintptr(SpectralDataPercentsSize), unsafe.Sizeof(SpectralDataPercents{}))
	assert.Equal(t, uintptr(4), unsafe.Sizeof(SideNone))
}

func TestPackedFieldOffsets(t *testing.T) {
	s := MathLibSetting{
		SamplingRate:       1,
		ProcessWinFreq:     2,
		FFTWindow:          3,
		NFirstSecSkipped:   4,
		BipolarMode:        True,
		ChannelsNumber:     5,
		ChannelForAnalysis: 6,
	}
	img, err := s.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, int32(4), int32(byteOrder.Uint32(img[12:16])))
	assert.Equal(t, int32(1), int32(byteOrder.Uint32(img[16:20])), "flag is a four-byte BOOL at offset 16")
	assert.Equal(t, int32(5), int32(byteOrder.Uint32(img[20:24])), "channels_number at offset 20")
	assert.Equal(t, int32(6), int32(byteOrder.Uint32(img[24:28])))

	a := ArtifactDetectSetting{
		GlobalArtwinSec:      7,
		SpectArtByTotalp:     True,
		HanningWinSpectrum:   False,
		HammingWinSpectrum:   True,
		NumWinsForQualityAvg: 9,
	}
	img, err = a.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, int32(7), int32(byteOrder.Uint32(img[16:20])))
	assert.Equal(t, int32(1), int32(byteOrder.Uint32(img[20:24])))
	assert.Equal(t, int32(0), int32(byteOrder.Uint32(img[24:28])))
	assert.Equal(t, int32(1), int32(byteOrder.Uint32(img[28:32])))
	assert.Equal(t, int32(9), int32(byteOrder.Uint32(img[32:36])))
}

func TestSettingsByteCopy(t *testing.T) {
	for _, v := range []int32{0, -1, math.MinInt32, math.MaxInt32} {
		for _, flag := range []bool{false, true} {
			mls := MathLibSetting{v, v, v, v, Flag(flag), v, v}
			ads := ArtifactDetectSetting{v, v, v, v, v, Flag(flag), Flag(!flag), Flag(flag), v}
			sads := ShortArtifactDetectSetting{v, v, v}
			mss := MentalAndSpectralSetting{v, v}

			var (
				gotMLS  MathLibSetting
				gotADS  ArtifactDetectSetting
				gotSADS ShortArtifactDetectSetting
				gotMSS  MentalAndSpectralSetting
			)
			copyImage(t, &mls, &gotMLS)
			copyImage(t, &ads, &gotADS)
			copyImage(t, &sads, &gotSADS)
			copyImage(t, &mss, &gotMSS)

			assert.Equal(t, mls, gotMLS)
			assert.Equal(t, ads, gotADS)
			assert.Equal(t, sads, gotSADS)
			assert.Equal(t, mss, gotMSS)
		}
	}
}

func TestResultsByteCopy(t *testing.T) {
	for _, v := range []float64{0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)} {
		rc := RawChannels{v, -v}
		md := MindData{v, v, -v, -v}
		rs := RawSpectVals{v, -v}
		sp := SpectralDataPercents{v, v, v, v, v}

		var (
			gotRC RawChannels
			gotMD MindData
			gotRS RawSpectVals
			gotSP SpectralDataPercents
		)
		copyImage(t, &rc, &gotRC)
		copyImage(t, &md, &gotMD)
		copyImage(t, &rs, &gotRS)
		copyImage(t, &sp, &gotSP)

		assert.Equal(t, rc, gotRC)
		assert.Equal(t, md, gotMD)
		assert.Equal(t, rs, gotRS)
		assert.Equal(t, sp, gotSP)
	}

	st := OpStatus{Success: true, Error: math.MaxUint32}
	st.SetMessage("engine not calibrated")
	var gotST OpStatus
	copyImage(t, &st, &gotST)
	assert.Equal(t, st, gotST)
	assert.Equal(t, "engine not calibrated", gotST.Message())
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	var s MentalAndSpectralSetting
	err := s.UnmarshalBinary(make([]byte, MentalAndSpectralSettingSize-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native layout is 8")
}

func TestOpStatusMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"Empty", "", ""},
		{"Short", "bad channel index", "bad channel index"},
		{"Exactly capacity", strings.Repeat("a", ErrorMsgSize-1), strings.Repeat("a", ErrorMsgSize-1)},
		{"One over", strings.Repeat("b", ErrorMsgSize), strings.Repeat("b", ErrorMsgSize-1)},
		{"Far over", strings.Repeat("c", 4*ErrorMsgSize), strings.Repeat("c", ErrorMsgSize-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st OpStatus
			st.Error = 42
			st.SetMessage(tt.msg)

			assert.Equal(t, tt.want, st.Message())
			assert.Equal(t, byte(0), st.ErrorMsg[ErrorMsgSize-1], "buffer must stay terminated")
			assert.Equal(t, uint32(42), st.Error, "message write must not touch neighbouring fields")
		})
	}
}

func TestOpStatusShorterMessageClearsTail(t *testing.T) {
	var st OpStatus
	st.SetMessage(strings.Repeat("x", 100))
	st.SetMessage("ok")

	assert.Equal(t, "ok", st.Message())
	for i := 2; i < ErrorMsgSize; i++ {
		if st.ErrorMsg[i] != 0 {
			t.Fatalf("byte %d not cleared: %q", i, st.ErrorMsg[i])
		}
	}
}

func TestOpStatusUnterminatedBuffer(t *testing.T) {
	var st OpStatus
	for i := range st.ErrorMsg {
		st.ErrorMsg[i] = 'z'
	}
	assert.Len(t, st.Message(), ErrorMsgSize)

	st.Reset()
	assert.Equal(t, OpStatus{}, st)
}

func TestSideType(t *testing.T) {
	tests := []struct {
		in   string
		want SideType
	}{
		{"left", SideLeft},
		{"RIGHT", SideRight},
		{" none ", SideNone},
		{"", SideNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSide("middle")
	assert.Error(t, err)

	assert.Equal(t, int32(0), int32(SideLeft))
	assert.Equal(t, int32(1), int32(SideRight))
	assert.Equal(t, int32(2), int32(SideNone))
	assert.Equal(t, "RIGHT", SideRight.String())
	assert.Equal(t, "SideType(7)", SideType(7).String())
}

func copyImage(t *testing.T, src Image, dst Image) {
	t.Helper()
	img, err := src.MarshalBinary()
	require.NoError(t, err)

	raw := make([]byte, len(img))
	copy(raw, img)
	require.NoError(t, dst.UnmarshalBinary(raw))
}

func TestLayouts(t *testing.T) {
	want := map[string]int{
		"MathLibSetting":             MathLibSettingSize,
		"ArtifactDetectSetting":      ArtifactDetectSettingSize,
		"ShortArtifactDetectSetting": ShortArtifactDetectSettingSize,
		"MentalAndSpectralSetting":   MentalAndSpectralSettingSize,
		"OpStatus":                   OpStatusSize,
		"RawChannels":                RawChannelsSize,
		"MindData":                   MindDataSize,
		"RawSpectVals":               RawSpectValsSize,
		"SpectralDataPercents":       SpectralDataPercentsSize,
	}

	layouts := Layouts()
	require.Len(t, layouts, len(want))
	for _, l := range layouts {
		assert.Equal(t, want[l.Name], l.Size, l.Name)
		end := 0
		for _, f := range l.Fields {
			assert.Equal(t, end, f.Offset, "%s.%s", l.Name, f.Name)
			end += f.Size
		}
		assert.Equal(t, l.Size, end, l.Name)
	}

	mls := layouts[0]
	assert.True(t, mls.Packed)
	assert.Equal(t, Field{Name: "BipolarMode", Offset: 16, Size: 4}, mls.Fields[4])
	assert.Equal(t, Field{Name: "ChannelsNumber", Offset: 20, Size: 4}, mls.Fields[5])

	st := layouts[4]
	assert.False(t, st.Packed)
	assert.Equal(t, []Field{
		{Name: "Success", Offset: 0, Size: 1},
		{Name: "_", Offset: 1, Size: 3},
		{Name: "Error", Offset: 4, Size: 4},
		{Name: "ErrorMsg", Offset: 8, Size: ErrorMsgSize},
	}, st.Fields)
}

func TestBool32(t *testing.T) {
	assert.Equal(t, True, Flag(true))
	assert.Equal(t, False, Flag(false))
	assert.True(t, Bool32(-7).Bool(), "any non-zero value is set")
	assert.False(t, False.Bool())

	// A flag written by the engine as a raw non-zero BOOL survives a copy.
	img := make([]byte, MathLibSettingSize)
	byteOrder.PutUint32(img[16:20], 0xFFFFFFFF)
	var s MathLibSetting
	require.NoError(t, s.UnmarshalBinary(img))
	assert.True(t, s.BipolarMode.Bool())
}

func TestJSONNonFinite(t *testing.T) {
	m := MindData{RelAttention: 35.5, RelRelaxation: math.NaN(), InstAttention: math.Inf(1), InstRelaxation: math.Inf(-1)}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rel_attention":35.5,"rel_relaxation":null,"inst_attention":null,"inst_relaxation":null}`, string(data))

	var got MindData
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 35.5, got.RelAttention)
	assert.True(t, math.IsNaN(got.RelRelaxation))
	assert.True(t, math.IsNaN(got.InstAttention))

	p := SpectralDataPercents{Delta: math.NaN(), Theta: 0.2, Alpha: 0.25, Beta: 0.15, Gamma: 0.1}
	data, err = json.Marshal([]SpectralDataPercents{p})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"delta":null,"theta":0.2,"alpha":0.25,"beta":0.15,"gamma":0.1}]`, string(data))

	data, err = json.Marshal(&RawSpectVals{Alpha: 1e-300, Beta: math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha":1e-300,"beta":null}`, string(data))

	var sp SpectralDataPercents
	assert.Error(t, json.Unmarshal([]byte(`{"delta":"x"}`), &sp))
}
