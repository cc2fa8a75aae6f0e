package logger

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	FieldTime    = "time"
	FieldLevel   = "level"
	FieldCaller  = "caller"
	FieldMessage = "message"
	FieldError   = "error"
	FieldData    = "data"
)

// Entry is a fluent builder for a single structured log line.
type Entry struct {
	log func() *logrus.Logger

	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Caller  string    `json:"caller"`
	Message string    `json:"message"`
	Error   []error   `json:"error"`
	Data    interface{} `json:"data"`
	Fields  Fields    `json:"fields"`
}

func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.Fields = e.Fields.Add(key, val)
	return e
}

func (e *Entry) FieldMerge(fields Fields) *Entry {
	e.Fields = e.Fields.Merge(fields)
	return e
}

func (e *Entry) DataSet(data interface{}) *Entry {
	e.Data = data
	return e
}

func (e *Entry) ErrorAdd(cleanNil bool, err ...error) *Entry {
	for _, er := range err {
		if cleanNil && er == nil {
			continue
		}
		e.Error = append(e.Error, er)
	}
	return e
}

// Check logs at lvlNoErr if no non-nil error was registered, else at e.Level.
// Returns true if an error was found.
func (e *Entry) Check(lvlNoErr Level) bool {
	found := false
	for _, er := range e.Error {
		if er != nil {
			found = true
			break
		}
	}
	if !found {
		e.Level = lvlNoErr
	}
	e.Log()
	return found
}

func (e *Entry) Log() {
	if e.log == nil {
		return
	}
	log := e.log()
	if log == nil {
		return
	}

	tag := NewFields().Add(FieldLevel, e.Level.String())

	if !e.Time.IsZero() {
		tag = tag.Add(FieldTime, e.Time.Format(time.RFC3339Nano))
	}
	if e.Caller != "" {
		tag = tag.Add(FieldCaller, e.Caller)
	}
	if e.Message != "" {
		tag = tag.Add(FieldMessage, e.Message)
	}

	if len(e.Error) > 0 {
		msgs := make([]string, 0, len(e.Error))
		for _, er := range e.Error {
			if er != nil {
				msgs = append(msgs, er.Error())
			}
		}
		if len(msgs) > 0 {
			tag = tag.Add(FieldError, strings.Join(msgs, ", "))
		}
	}

	if e.Data != nil {
		tag = tag.Add(FieldData, e.Data)
	}
	if len(e.Fields) > 0 {
		tag = tag.Merge(e.Fields)
	}

	if e.Level == NilLevel {
		return
	}

	log.WithFields(tag.Logrus()).Log(e.Level.Logrus())

	if e.Level <= FatalLevel {
		os.Exit(1)
	}
}
