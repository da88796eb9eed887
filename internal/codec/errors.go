package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTruncatedInput        = errors.New("truncated input")
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
	ErrUnknownDiscriminant   = errors.New("unknown enum discriminant")
	ErrInvalidOptionTag      = errors.New("invalid option tag")
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrValueOutOfRange       = errors.New("value out of range")
)

// UnknownDiscriminantError reports an enum byte outside the declared variants.
type UnknownDiscriminantError struct {
	Type  string
	Value uint8
	Count int
}

func (e *UnknownDiscriminantError) Error() string {
	return fmt.Sprintf("%s: discriminant %d not in [0,%d)", ErrUnknownDiscriminant, e.Value, e.Count)
}

func (e *UnknownDiscriminantError) Is(target error) bool {
	return target == ErrUnknownDiscriminant
}

// FieldError locates a decode or encode failure inside a nested record.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func wrapField(segment string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		path := fe.Path
		if !strings.HasPrefix(path, "[") {
			path = "." + path
		}
		return &FieldError{Path: segment + path, Err: fe.Err}
	}
	return &FieldError{Path: segment, Err: err}
}

func truncated(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, %d remaining", ErrTruncatedInput, need, have)
}
