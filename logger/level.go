package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is a log severity, ordered from most to least severe so Level
// comparisons (e.g. `lvl <= FatalLevel`) read naturally.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	// NilLevel disables the entry; it is never a valid SetLogLevel argument.
	NilLevel
)

func GetLevelListString() []string {
	return []string{
		strings.ToLower(PanicLevel.String()),
		strings.ToLower(FatalLevel.String()),
		strings.ToLower(ErrorLevel.String()),
		strings.ToLower(WarnLevel.String()),
		strings.ToLower(InfoLevel.String()),
		strings.ToLower(DebugLevel.String()),
	}
}

// GetLevelString maps a case-insensitive level name to a Level, defaulting
// to InfoLevel when the name is not recognized.
func GetLevelString(l string) Level {
	l = strings.ToLower(l)
	switch l {
	case "":
		return InfoLevel
	case "panic":
		return PanicLevel
	case "error":
		return ErrorLevel
	}
	switch {
	case strings.Contains(strings.ToLower(PanicLevel.String()), l):
		return PanicLevel
	case strings.Contains(strings.ToLower(FatalLevel.String()), l):
		return FatalLevel
	case strings.Contains(strings.ToLower(ErrorLevel.String()), l):
		return ErrorLevel
	case strings.Contains(strings.ToLower(WarnLevel.String()), l):
		return WarnLevel
	case strings.Contains(strings.ToLower(InfoLevel.String()), l):
		return InfoLevel
	case strings.Contains(strings.ToLower(DebugLevel.String()), l):
		return DebugLevel
	}
	return InfoLevel
}

func (l Level) Uint8() uint8 { return uint8(l) }

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warning"
	case ErrorLevel:
		return "Error"
	case FatalLevel:
		return "Fatal Error"
	case PanicLevel:
		return "Critical Error"
	case NilLevel:
		return ""
	}
	return "unknown"
}

func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	case PanicLevel:
		return logrus.PanicLevel
	default:
		return logrus.TraceLevel
	}
}
