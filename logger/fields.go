package logger

import "github.com/sirupsen/logrus"

// Fields is an immutable-by-convention key/value bag: every mutating method
// returns a new Fields rather than editing the receiver in place.
type Fields map[string]interface{}

func NewFields() Fields { return make(Fields) }

func (f Fields) clone() Fields {
	res := make(Fields, len(f))
	for k, v := range f {
		res[k] = v
	}
	return res
}

func (f Fields) Add(key string, val interface{}) Fields {
	res := f.clone()
	res[key] = val
	return res
}

func (f Fields) Merge(other Fields) Fields {
	if len(other) == 0 {
		return f
	}
	if len(f) == 0 {
		return other
	}
	res := f.clone()
	for k, v := range other {
		res[k] = v
	}
	return res
}

func (f Fields) Logrus() logrus.Fields { return logrus.Fields(f.clone()) }
