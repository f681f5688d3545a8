package form

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the wire format of date values.
const DateLayout = "2006-01-02"

var (
	errValueRequired = errors.New("a value is required")
	errExpectedText  = errors.New("expected a text value")
	errExpectedNum   = errors.New("expected a number value")
	errExpectedDate  = errors.New("expected a date (YYYY-MM-DD)")
	errUnknownOption = errors.New("value is not one of the field options")
)

// Value is a response value: a text, a number, a date or a selected option.
//
// On the wire it is the plain JSON value. A decoded Value is unbound (Kind is empty)
// until Bind checks it against the field it answers.
type Value struct {
	Kind   FieldKind
	Text   string // text and select
	Number float64
	Date   time.Time

	raw interface{}
}

func TextValue(s string) Value       { return Value{Kind: KindText, Text: s} }
func NumberValue(f float64) Value    { return Value{Kind: KindNumber, Number: f} }
func DateValue(t time.Time) Value    { return Value{Kind: KindDate, Date: truncateDate(t)} }
func OptionValue(option string) Value { return Value{Kind: KindSelect, Text: option} }

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Interface returns the value as encoding/json would decode it.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindText, KindSelect:
		return v.Text
	case KindNumber:
		return v.Number
	case KindDate:
		return v.Date.Format(DateLayout)
	}
	return v.raw
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Value{raw: raw}
	return nil
}

// Bind types the value after the field it answers.
func (v Value) Bind(field FieldDefinition) (Value, error) {
	raw := v.Interface()
	if raw == nil {
		return Value{}, errValueRequired
	}

	switch field.Kind {
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return Value{}, errExpectedText
		}
		return TextValue(s), nil

	case KindNumber:
		switch n := raw.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return Value{}, errExpectedNum
			}
			return NumberValue(n), nil
		case string:
			// numbers typed in text inputs
			f, err := strconv.ParseFloat(n, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return Value{}, errExpectedNum
			}
			return NumberValue(f), nil
		}
		return Value{}, errExpectedNum

	case KindDate:
		s, ok := raw.(string)
		if !ok {
			return Value{}, errExpectedDate
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			return DateValue(t), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return DateValue(t), nil
		}
		return Value{}, errExpectedDate

	case KindSelect:
		s, ok := raw.(string)
		if !ok {
			return Value{}, errUnknownOption
		}
		for _, opt := range field.Options {
			if opt == s {
				return OptionValue(s), nil
			}
		}
		return Value{}, errUnknownOption
	}
	return Value{}, errors.Errorf("unknown field type %q", field.Kind)
}
