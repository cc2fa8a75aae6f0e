// Package errors provides error handling with numeric codes, stack traces and
// parent/child error hierarchies.
//
// It extends Go's standard error handling with:
//   - Error codes (numeric classification similar to HTTP status codes)
//   - Automatic stack trace capture (file, line, function)
//   - Error hierarchy (parent-child chains) compatible with errors.Is/errors.As
//   - An abstract "kind" mapping used to pick wire error codes and CLI exit codes
package errors

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
)

// FuncMap is called for each error in a hierarchy; returning false stops the walk.
type FuncMap func(e error) bool

// Error extends the standard error with code, hierarchy and trace information.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError
	GetParentCode() []CodeError

	Is(e error) bool
	IsError(e error) bool
	HasError(err error) bool
	HasParent() bool
	GetParent(withMainError bool) []error
	Map(fct FuncMap) bool
	ContainsString(s string) bool

	Add(parent ...error)
	SetParent(parent ...error)

	Code() uint16
	CodeSlice() []uint16

	CodeError(pattern string) string
	CodeErrorSlice(pattern string) []string

	Error() string

	StringError() string
	StringErrorSlice() []string

	GetError() error
	GetErrorSlice() []error
	Unwrap() []error

	GetTrace() string
	GetTraceSlice() []string

	// Kind returns the abstract error kind used for wire/CLI mapping.
	Kind() Kind
}

// Is reports whether e can be unwrapped into an Error.
func Is(e error) bool {
	var err Error
	return errors.As(e, &err)
}

// Get returns e as an Error if possible, else nil.
func Get(e error) Error {
	var err Error
	if errors.As(e, &err) {
		return err
	}
	return nil
}

// Has reports whether e or any of its parents carries code.
func Has(e error, code CodeError) bool {
	if err := Get(e); err == nil {
		return false
	} else {
		return err.HasCode(code)
	}
}

// Make wraps a plain error into an Error with code 0 if it is not one already.
func Make(e error) Error {
	if e == nil {
		return nil
	}

	var err Error
	if errors.As(e, &err) {
		return err
	}

	return &ers{
		c: 0,
		e: e.Error(),
		k: KindInternal,
		p: nil,
		t: getNilFrame(),
	}
}

// New creates a new Error with the given code, message, kind and optional parents.
func New(code uint16, kind Kind, message string, parent ...error) Error {
	var p = make([]Error, 0)

	for _, e := range parent {
		if er := Make(e); er != nil {
			p = append(p, er)
		}
	}

	return &ers{
		c: code,
		e: message,
		k: kind,
		p: p,
		t: getFrame(),
	}
}

// Newf is New with a fmt.Sprintf-formatted message.
func Newf(code uint16, kind Kind, pattern string, args ...any) Error {
	return &ers{
		c: code,
		e: fmt.Sprintf(pattern, args...),
		k: kind,
		p: make([]Error, 0),
		t: getFrame(),
	}
}

func clampCode(i int64) uint16 {
	if i < 0 {
		return 0
	} else if i >= int64(math.MaxUint16) {
		return math.MaxUint16
	}
	return uint16(i)
}

type ers struct {
	c uint16
	e string
	k Kind
	p []Error
	t runtime.Frame
}

func (e *ers) is(err *ers) bool {
	if e == nil || err == nil {
		return false
	}
	if ss, sd := e.GetTrace(), err.GetTrace(); ss != "" || sd != "" {
		return ss != "" && sd != "" && strings.EqualFold(ss, sd)
	}
	if ss, sd := e.Error(), err.Error(); ss != "" || sd != "" {
		return ss != "" && sd != "" && strings.EqualFold(ss, sd)
	}
	return e.c > 0 && err.c > 0 && e.c == err.c
}

func (e *ers) Is(err error) bool {
	if err == nil {
		return false
	}
	if er, ok := err.(*ers); ok {
		return e.is(er)
	}
	return e.IsError(err)
}

func (e *ers) Add(parent ...error) {
	for _, v := range parent {
		if v == nil {
			continue
		}

		if er, ok := v.(*ers); ok {
			if e.IsError(er) {
				for _, erp := range er.p {
					e.Add(erp)
				}
				continue
			}
			e.p = append(e.p, er)
			continue
		}

		if err, ok := v.(Error); ok {
			e.p = append(e.p, err)
			continue
		}

		e.p = append(e.p, &ers{c: 0, e: v.Error(), k: KindInternal})
	}
}

func (e *ers) IsCode(code CodeError) bool { return e.c == code.Uint16() }
func (e *ers) IsError(err error) bool     { return strings.EqualFold(e.e, err.Error()) }

func (e *ers) HasCode(code CodeError) bool {
	if e.IsCode(code) {
		return true
	}
	for _, p := range e.p {
		if p.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *ers) GetCode() CodeError { return CodeError(e.c) }

func (e *ers) GetParentCode() []CodeError {
	res := []CodeError{e.GetCode()}
	for _, p := range e.p {
		res = append(res, p.GetParentCode()...)
	}
	return unicCodeSlice(res)
}

func (e *ers) HasError(err error) bool {
	if e.IsError(err) {
		return true
	}
	for _, p := range e.p {
		if p.IsError(err) || p.HasError(err) {
			return true
		}
	}
	return false
}

func (e *ers) HasParent() bool { return len(e.p) > 0 }

func (e *ers) GetParent(withMainError bool) []error {
	res := make([]error, 0)
	if withMainError {
		res = append(res, &ers{c: e.c, e: e.e, k: e.k, t: e.t})
	}
	for _, er := range e.p {
		res = append(res, er.GetParent(true)...)
	}
	return res
}

func (e *ers) SetParent(parent ...error) {
	e.p = make([]Error, 0)
	e.Add(parent...)
}

func (e *ers) Map(fct FuncMap) bool {
	if !fct(e) {
		return false
	}
	for _, er := range e.p {
		if !er.Map(fct) {
			return false
		}
	}
	return true
}

func (e *ers) ContainsString(s string) bool {
	if strings.Contains(e.e, s) {
		return true
	}
	for _, i := range e.p {
		if i.ContainsString(s) {
			return true
		}
	}
	return false
}

func (e *ers) Code() uint16 { return e.c }

func (e *ers) CodeSlice() []uint16 {
	r := []uint16{e.Code()}
	for _, v := range e.p {
		if v.Code() > 0 {
			r = append(r, v.Code())
		}
	}
	return r
}

func (e *ers) Error() string { return e.e }

func (e *ers) StringError() string { return e.e }

func (e *ers) StringErrorSlice() []string {
	r := []string{e.StringError()}
	for _, v := range e.p {
		r = append(r, v.Error())
	}
	return r
}

func (e *ers) GetError() error { return errors.New(e.e) }

func (e *ers) GetErrorSlice() []error {
	r := []error{e.GetError()}
	for _, v := range e.p {
		if v == nil {
			continue
		}
		r = append(r, v.GetErrorSlice()...)
	}
	return r
}

func (e *ers) Unwrap() []error {
	if len(e.p) < 1 {
		return nil
	}
	r := make([]error, 0, len(e.p))
	for _, v := range e.p {
		if v != nil {
			r = append(r, v)
		}
	}
	return r
}

func (e *ers) GetTrace() string {
	if e.t.File != "" {
		return fmt.Sprintf("%s#%d", filterPath(e.t.File), e.t.Line)
	} else if e.t.Function != "" {
		return fmt.Sprintf("%s#%d", e.t.Function, e.t.Line)
	}
	return ""
}

func (e *ers) GetTraceSlice() []string {
	r := []string{e.GetTrace()}
	for _, v := range e.p {
		if t := v.GetTrace(); t != "" {
			r = append(r, t)
		}
	}
	return r
}

func (e *ers) CodeError(pattern string) string {
	if pattern == "" {
		pattern = defaultPattern
	}
	return fmt.Sprintf(pattern, e.Code(), e.StringError())
}

func (e *ers) CodeErrorSlice(pattern string) []string {
	r := []string{e.CodeError(pattern)}
	for _, v := range e.p {
		r = append(r, v.CodeError(pattern))
	}
	return r
}

func (e *ers) Kind() Kind { return e.k }
