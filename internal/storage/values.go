package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Values maps names to numbers. Non-finite entries are written as the JSON
// strings "NaN", "+Inf" and "-Inf" so diverged runs can still be saved.
type Values map[string]float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]json.RawMessage, len(v))
	for k, x := range v {
		raw[k] = encodeFloat(x)
	}
	return json.Marshal(raw)
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for k, r := range raw {
		x, err := decodeFloat(r)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		out[k] = x
	}
	*v = out
	return nil
}

// Series is a float column with the same encoding as Values.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make([]json.RawMessage, len(s))
	for i, x := range s {
		raw[i] = encodeFloat(x)
	}
	return json.Marshal(raw)
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Series, len(raw))
	for i, r := range raw {
		x, err := decodeFloat(r)
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = x
	}
	*s = out
	return nil
}

func encodeFloat(x float64) json.RawMessage {
	text := strconv.FormatFloat(x, 'g', -1, 64)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return json.RawMessage(strconv.Quote(text))
	}
	return json.RawMessage(text)
}

func decodeFloat(r json.RawMessage) (float64, error) {
	if len(r) > 0 && r[0] == '"' {
		var text string
		if err := json.Unmarshal(r, &text); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(text, 64)
	}
	var x float64
	err := json.Unmarshal(r, &x)
	return x, err
}
