package assert

import "fmt"

// NotNil panics when value is nil, name identifies the value in the panic message.
func NotNil(value any, name string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", name))
	}
}

// Positive panics when n <= 0.
func Positive[T ~int | ~int64 | ~float64](n T, name string) {
	if n <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %v", name, n))
	}
}
