// SPDX-License-Identifier: MIT
package records

import (
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat encodes NaN and the infinities as null, which JSON can carry.
// null decodes back to NaN.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type mindDataJSON struct {
	RelAttention   jsonFloat `json:"rel_attention"`
	RelRelaxation  jsonFloat `json:"rel_relaxation"`
	InstAttention  jsonFloat `json:"inst_attention"`
	InstRelaxation jsonFloat `json:"inst_relaxation"`
}

func (m MindData) MarshalJSON() ([]byte, error) {
	return json.Marshal(mindDataJSON{
		jsonFloat(m.RelAttention), jsonFloat(m.RelRelaxation),
		jsonFloat(m.InstAttention), jsonFloat(m.InstRelaxation),
	})
}

func (m *MindData) UnmarshalJSON(data []byte) error {
	var j mindDataJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*m = MindData{float64(j.RelAttention), float64(j.RelRelaxation), float64(j.InstAttention), float64(j.InstRelaxation)}
	return nil
}

type rawSpectValsJSON struct {
	Alpha jsonFloat `json:"alpha"`
	Beta  jsonFloat `json:"beta"`
}

func (r RawSpectVals) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawSpectValsJSON{jsonFloat(r.Alpha), jsonFloat(r.Beta)})
}

func (r *RawSpectVals) UnmarshalJSON(data []byte) error {
	var j rawSpectValsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = RawSpectVals{float64(j.Alpha), float64(j.Beta)}
	return nil
}

type spectralDataPercentsJSON struct {
	Delta jsonFloat `json:"delta"`
	Theta jsonFloat `json:"theta"`
	Alpha jsonFloat `json:"alpha"`
	Beta  jsonFloat `json:"beta"`
	Gamma jsonFloat `json:"gamma"`
}

func (p SpectralDataPercents) MarshalJSON() ([]byte, error) {
	return json.Marshal(spectralDataPercentsJSON{
		jsonFloat(p.Delta), jsonFloat(p.Theta), jsonFloat(p.Alpha), jsonFloat(p.Beta), jsonFloat(p.Gamma),
	})
}

func (p *SpectralDataPercents) UnmarshalJSON(data []byte) error {
	var j spectralDataPercentsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*p = SpectralDataPercents{float64(j.Delta), float64(j.Theta), float64(j.Alpha), float64(j.Beta), float64(j.Gamma)}
	return nil
}
