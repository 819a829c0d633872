package customer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingValue marks a tabular row that lacks or cannot coerce a value.
var ErrMissingValue = errors.New("missing value")

// FromStrings builds a Record from textual column values such as a CSV row.
// Empty values and numbers that fail to parse count as missing.
func FromStrings(cols map[string]string) (Record, error) {
	var rec Record
	for _, f := range schema {
		s, ok := cols[f.Name]
		if !ok || s == "" {
			return Record{}, fmt.Errorf("%w: %s", ErrMissingValue, f.Name)
		}
		var v value
		switch f.Type {
		case TypeString:
			v.s = s
		case TypeInteger:
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return Record{}, fmt.Errorf("%w: %s=%q", ErrMissingValue, f.Name, s)
			}
			v.i = n
		case TypeNumber:
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return Record{}, fmt.Errorf("%w: %s=%q", ErrMissingValue, f.Name, s)
			}
			v.f = n
		}
		f.set(&rec, v)
	}
	return rec, nil
}
