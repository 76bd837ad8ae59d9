package common

// Result carries either a payload or a typed error across the public API
// boundary. Operations that can fail return a Result instead of panicking
// into callers.
type Result[T any] struct {
	value T
	err   *AppError
}

// Ok creates a successful result.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err creates a failed result.
func Err[T any](err *AppError) Result[T] {
	return Result[T]{err: err}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the payload. Only meaningful when IsOk is true.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the typed error, nil on success.
func (r Result[T]) Err() *AppError {
	return r.err
}

// Unwrap returns the payload and the error as a plain Go pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}
	return r.value, nil
}
