package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a statistic that serializes as JSON null when it is NaN or
// infinite (for example the correlation of a constant column).
type Value float64

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Float returns the underlying float64
func (v Value) Float() float64 {
	return float64(v)
}

// DescriptiveStats summarizes the numeric columns of a table
type DescriptiveStats struct {
	Means             map[string]Value            `json:"means"`
	StdDevs           map[string]Value            `json:"std_devs"`
	CorrelationMatrix map[string]map[string]Value `json:"correlation_matrix"`
	N                 int                         `json:"n"`
	Columns           []string                    `json:"columns"`
}

// Correlation returns the correlation between two columns
func (s *DescriptiveStats) Correlation(a, b string) (float64, bool) {
	row, ok := s.CorrelationMatrix[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	return float64(v), ok
}
