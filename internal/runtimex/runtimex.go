// Package runtimex contains [runtime] extensions used to check invariants
// that, when violated, indicate a programming error rather than a network fault.
package runtimex

import "fmt"

// PanicIfFalse calls panic with the given message if the given statement is false.
func PanicIfFalse(stmt bool, message interface{}) {
	if !stmt {
		panic(message)
	}
}

// PanicOnError calls panic if err is not nil, wrapping it with message.
func PanicOnError(err error, message string) {
	if err != nil {
		panic(fmt.Errorf("%s: %w", message, err))
	}
}

// Assert calls panic with the given message if the given statement is false.
var Assert = PanicIfFalse
