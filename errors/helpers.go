package errors

import (
	"errors"
	"fmt"
)

// Op converts a string into an Operation for use with E.
func Op(s string) Operation { return Operation(s) }

// componentArg marks a string argument to E as the component name.
type componentArg string

// Component marks a string as the component name for use with E.
func Component(s string) componentArg { return componentArg(s) }

// E builds a SyncError from its arguments. Recognised argument types are
// Operation, Component(...), Kind, ErrorCode, error and string (a message
// that becomes the cause when no error is given, or annotates it otherwise).
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &SyncError{}
	var msgs []string
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case componentArg:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case ErrorCode:
			e.Code = a
		case *SyncError:
			e.Err = a
			if e.Code == "" {
				e.Code = a.Code
			}
			e.Retryable = a.Retryable
		case error:
			e.Err = a
		case string:
			msgs = append(msgs, a)
		}
	}
	for _, m := range msgs {
		if e.Err == nil {
			e.Err = errors.New(m)
			continue
		}
		e.Err = fmt.Errorf("%w (%s)", e.Err, m)
	}
	if e.Err == nil {
		e.Err = errors.New("unknown error")
	}
	return e
}

// WrapOpComponent provides a convenience helper to wrap errors with consistent Op and Component propagation.
// If err is nil, returns nil.
func WrapOpComponent(err error, op, component string) error {
	if err == nil {
		return nil
	}
	return E(Op(op), Component(component), err)
}

// WrapOpComponentKind provides a convenience helper to wrap errors with Op, Component, and Kind.
// If err is nil, returns nil.
func WrapOpComponentKind(err error, op, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	return E(Op(op), Component(component), kind, err)
}
