// Package terrain builds processed terrain artifacts from source scenes and
// loads them back into runtime scenes.
package terrain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	KindConfiguration Kind = iota + 1 // bad or missing descriptor
	KindProcessing                    // collider, tangent or cluster generation failed
	KindCodec                         // malformed, truncated or undecompressable artifact
	KindDependency                    // source scene or artifact bytes failed to load
)

// Sentinels matching every Error of the corresponding Kind under errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrProcessing    = errors.New("processing error")
	ErrCodec         = errors.New("codec error")
	ErrDependency    = errors.New("dependency error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindProcessing:
		return ErrProcessing
	case KindCodec:
		return ErrCodec
	case KindDependency:
		return ErrDependency
	}
	return nil
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified pipeline failure. Err is the cause, kept verbatim.
type Error struct {
	Kind Kind
	Op   string // "build", "process", "load"
	Path string // descriptor, artifact or source scene path, when known
	Err  error
}

func (e *Error) Error() string {
	msg := "terrain " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// WithPath sets path on the first *Error in err's chain if it has none, and
// returns err unchanged.
func WithPath(err error, path string) error {
	var te *Error
	if errors.As(err, &te) && te.Path == "" {
		te.Path = path
	}
	return err
}
