package listing

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnparsed marks a field whose raw text did not match its parsing rules.
var ErrUnparsed = errors.New("field could not be parsed")

// Field is the result of parsing a piece of scraped text. The value is only
// reachable through Get, so an unparsed field is never mistaken for a zero value.
type Field[T any] struct {
	raw    string
	value  T
	parsed bool
}

func Parsed[T any](raw string, value T) Field[T] {
	return Field[T]{raw: raw, value: value, parsed: true}
}

func Unparsed[T any](raw string) Field[T] {
	return Field[T]{raw: raw}
}

func (f Field[T]) Raw() string {
	return f.raw
}

func (f Field[T]) Get() (T, bool) {
	return f.value, f.parsed
}

func (f Field[T]) IsParsed() bool {
	return f.parsed
}

// Err returns nil for a parsed field and an error wrapping ErrUnparsed otherwise.
func (f Field[T]) Err() error {
	if f.parsed {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnparsed, f.raw)
}

func (f Field[T]) String() string {
	if f.parsed {
		return fmt.Sprintf("Parsed(%v)", f.value)
	}
	return fmt.Sprintf("Unparsed(%q)", f.raw)
}

// Equal lets go-cmp compare fields without exporting their state.
func (f Field[T]) Equal(other Field[T]) bool {
	if f.parsed != other.parsed || f.raw != other.raw {
		return false
	}
	if !f.parsed {
		return true
	}
	return fmt.Sprint(f.value) == fmt.Sprint(other.value)
}

type fieldJSON[T any] struct {
	Raw    string `json:"raw"`
	Value  *T     `json:"value,omitempty"`
	Parsed bool   `json:"parsed"`
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	out := fieldJSON[T]{Raw: f.raw, Parsed: f.parsed}
	if f.parsed {
		v := f.value
		out.Value = &v
	}
	return json.Marshal(out)
}
