package logger

import (
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the service logger: JSON to stdout, optionally duplicated
// to a file for local debugging.
func NewLogger(level string, logFile string) *logrus.Logger {
	l := logrus.New()

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	l.SetOutput(os.Stdout)

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Printf("cannot open log file %s: %v, logging to stdout only", logFile, err)
		} else {
			l.AddHook(&fileHook{file: file, formatter: l.Formatter})
		}
	}

	return l
}

type fileHook struct {
	file      *os.File
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.file.Write(line)
	return err
}
