package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// writerHook is a minimal logrus.Hook writing formatted entries to an
// io.Writer, used for both the stderr hook and the file hook so the two
// share fire/format logic.
type writerHook struct {
	w      io.Writer
	levels []logrus.Level
}

func newWriterHook(w io.Writer, levels []logrus.Level) *writerHook {
	return &writerHook{w: w, levels: levels}
}

func (h *writerHook) Levels() []logrus.Level { return h.levels }

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := e.Bytes()
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
