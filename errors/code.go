package errors

import "strconv"

// CodeError is a numeric error code in the HTTP-status-style space used
// across the runtime, one reserved block per package (see modules.go).
type CodeError uint16

const (
	UnknownError   CodeError = 0
	UnknownMessage           = "unknown error"
)

func NewCodeError(code uint16) CodeError { return CodeError(code) }
func (c CodeError) Uint16() uint16       { return uint16(c) }
func (c CodeError) Int() int             { return int(c) }
func (c CodeError) String() string       { return strconv.Itoa(c.Int()) }

// Error builds an Error value from this code and the given kind and message.
func (c CodeError) Error(kind Kind, message string, parent ...error) Error {
	return New(c.Uint16(), kind, message, parent...)
}
