package attendance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an integer tool parameter. Besides JSON numbers it accepts
// numeric strings ("3") and integral floats (3.0), which local models
// frequently send. It still reflects as "integer" in parameter schemas.
type Int int64

func (n *Int) UnmarshalJSON(data []byte) error {
	f, ok, err := looseNumber(data)
	if err != nil || !ok {
		return err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return fmt.Errorf("%s is not an integer", data)
	}
	*n = Int(f)
	return nil
}

// Float is the number counterpart of Int.
type Float float64

func (n *Float) UnmarshalJSON(data []byte) error {
	f, ok, err := looseNumber(data)
	if err != nil || !ok {
		return err
	}
	*n = Float(f)
	return nil
}

// looseNumber parses a JSON number, or a string holding one. ok is false
// for null and for an empty string, which leave the target unchanged.
func looseNumber(data []byte) (f float64, ok bool, err error) {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return 0, false, nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return 0, false, fmt.Errorf("invalid number %s", data)
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			return 0, false, nil
		}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(v), true, nil
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("%s is not a number", data)
	}
	return f, true, nil
}
