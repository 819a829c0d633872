package customer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the JSON type a field must carry.
type Type string

// Field types.
const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
)

// Role tells the transformer how a column is encoded.
type Role int

// Column roles.
const (
	RoleCategorical Role = iota
	RoleNumeric
)

// Field declares one request attribute.
type Field struct {
	Name     string
	Type     Type
	Role     Role
	Required bool
	// Values lists the categories seen in the reference dataset. They are
	// documentation and generator input only: unknown values are accepted.
	Values []string

	set func(*Record, value)
}

type value struct {
	s string
	i int
	f float64
}

var (
	yesNo         = []string{"No", "Yes"}
	yesNoInternet = []string{"No", "No internet service", "Yes"}
)

// schema is ordered as the columns of the raw dataset.
var schema = []Field{
	{Name: "gender", Type: TypeString, Role: RoleCategorical, Required: true, Values: []string{"Female", "Male"},
		set: func(r *Record, v value) { r.Gender = v.s }},
	{Name: "SeniorCitizen", Type: TypeInteger, Role: RoleCategorical, Required: true, Values: []string{"0", "1"},
		set: func(r *Record, v value) { r.SeniorCitizen = v.i }},
	{Name: "Partner", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNo,
		set: func(r *Record, v value) { r.Partner = v.s }},
	{Name: "Dependents", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNo,
		set: func(r *Record, v value) { r.Dependents = v.s }},
	{Name: "tenure", Type: TypeNumber, Role: RoleNumeric, Required: true,
		set: func(r *Record, v value) { r.Tenure = v.f }},
	{Name: "PhoneService", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNo,
		set: func(r *Record, v value) { r.PhoneService = v.s }},
	{Name: "MultipleLines", Type: TypeString, Role: RoleCategorical, Required: true, Values: []string{"No", "No phone service", "Yes"},
		set: func(r *Record, v value) { r.MultipleLines = v.s }},
	{Name: "InternetService", Type: TypeString, Role: RoleCategorical, Required: true, Values: []string{"DSL", "Fiber optic", "No"},
		set: func(r *Record, v value) { r.InternetService = v.s }},
	{Name: "OnlineSecurity", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.OnlineSecurity = v.s }},
	{Name: "OnlineBackup", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.OnlineBackup = v.s }},
	{Name: "DeviceProtection", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.DeviceProtection = v.s }},
	{Name: "TechSupport", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.TechSupport = v.s }},
	{Name: "StreamingTV", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.StreamingTV = v.s }},
	{Name: "StreamingMovies", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNoInternet,
		set: func(r *Record, v value) { r.StreamingMovies = v.s }},
	{Name: "Contract", Type: TypeString, Role: RoleCategorical, Required: true, Values: []string{"Month-to-month", "One year", "Two year"},
		set: func(r *Record, v value) { r.Contract = v.s }},
	{Name: "PaperlessBilling", Type: TypeString, Role: RoleCategorical, Required: true, Values: yesNo,
		set: func(r *Record, v value) { r.PaperlessBilling = v.s }},
	{Name: "PaymentMethod", Type: TypeString, Role: RoleCategorical, Required: true,
		Values: []string{"Bank transfer (automatic)", "Credit card (automatic)", "Electronic check", "Mailed check"},
		set:    func(r *Record, v value) { r.PaymentMethod = v.s }},
	{Name: "MonthlyCharges", Type: TypeNumber, Role: RoleNumeric, Required: true,
		set: func(r *Record, v value) { r.MonthlyCharges = v.f }},
	{Name: "TotalCharges", Type: TypeNumber, Role: RoleNumeric, Required: true,
		set: func(r *Record, v value) { r.TotalCharges = v.f }},
}

// Schema returns a copy of the request schema in dataset column order.
func Schema() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	return out
}

// Columns returns the names of all fields with the given role, in schema order.
func Columns(role Role) []string {
	var out []string
	for _, f := range schema {
		if f.Role == role {
			out = append(out, f.Name)
		}
	}
	return out
}

// ErrInvalidRecord is wrapped by every ValidationError.
var ErrInvalidRecord = errors.New("invalid customer record")

// Issue describes one schema violation.
type Issue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError aggregates all schema violations of one request body.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, strings.Join(is.Loc, ".")+": "+is.Msg)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRecord, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Decode validates body against the schema and builds a Record. Unknown
// attributes are ignored. All violations are reported, not just the first.
func Decode(body []byte) (Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, &ValidationError{Issues: []Issue{{
			Loc: []string{"body"}, Msg: "value is not a valid JSON object", Type: "type_error.dict",
		}}}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Record{}, &ValidationError{Issues: []Issue{{
			Loc: []string{"body"}, Msg: "malformed JSON: " + err.Error(), Type: "value_error.jsondecode",
		}}}
	}

	var (
		rec    Record
		issues []Issue
	)
	for _, f := range schema {
		msg, ok := raw[f.Name]
		if !ok {
			if f.Required {
				issues = append(issues, Issue{Loc: []string{"body", f.Name}, Msg: "field required", Type: "value_error.missing"})
			}
			continue
		}
		v, issue := parseValue(f, msg)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		f.set(&rec, v)
	}

	if len(issues) > 0 {
		return Record{}, &ValidationError{Issues: issues}
	}
	return rec, nil
}

func parseValue(f Field, msg json.RawMessage) (value, *Issue) {
	loc := []string{"body", f.Name}
	if string(bytes.TrimSpace(msg)) == "null" {
		return value{}, &Issue{Loc: loc, Msg: "none is not an allowed value", Type: "type_error.none.not_allowed"}
	}

	switch f.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return value{}, &Issue{Loc: loc, Msg: "str type expected", Type: "type_error.str"}
		}
		return value{s: s}, nil
	case TypeInteger:
		n, ok := parseInteger(msg)
		if !ok {
			return value{}, &Issue{Loc: loc, Msg: "value is not a valid integer", Type: "type_error.integer"}
		}
		return value{i: int(n)}, nil
	case TypeNumber:
		var n float64
		if err := json.Unmarshal(msg, &n); err != nil {
			return value{}, &Issue{Loc: loc, Msg: "value is not a valid float", Type: "type_error.float"}
		}
		return value{f: n}, nil
	default:
		return value{}, &Issue{Loc: loc, Msg: "unsupported field type " + string(f.Type), Type: "type_error"}
	}
}

// parseInteger accepts a JSON integer, or an integral float such as 1.0,
// within the int64 range. Plain integer literals are parsed exactly.
func parseInteger(msg json.RawMessage) (int64, bool) {
	if n, err := strconv.ParseInt(string(bytes.TrimSpace(msg)), 10, 64); err == nil {
		return n, true
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
