package logger

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger, safe for concurrent use.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	AddHookStderr()
	AddHookFile(path string) error
	Entry(lvl Level, message string) *Entry
	NewFields() Fields
}

type logg struct {
	mu  sync.RWMutex
	log *logrus.Logger
	lvl Level
}

// New builds a Logger backed by logrus, starting at the given level with a
// JSON formatter.
func New(lvl Level) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	l.SetLevel(lvl.Logrus())
	l.SetOutput(io.Discard)

	g := &logg{log: l, lvl: lvl}
	g.AddHookStderr()
	return g
}

func (g *logg) SetLevel(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lvl = lvl
	g.log.SetLevel(lvl.Logrus())
}

func (g *logg) GetLevel() Level {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lvl
}

func (g *logg) AddHookStderr() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.AddHook(newWriterHook(os.Stderr, allLevels()))
}

func (g *logg) AddHookFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.AddHook(newWriterHook(f, allLevels()))
	return nil
}

func (g *logg) Entry(lvl Level, message string) *Entry {
	return &Entry{
		log:     func() *logrus.Logger { return g.log },
		Time:    time.Now(),
		Level:   lvl,
		Caller:  caller(),
		Message: message,
		Fields:  NewFields(),
	}
}

func (g *logg) NewFields() Fields { return NewFields() }

func caller() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func allLevels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel,
		logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel,
	}
}
