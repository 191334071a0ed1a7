// Package logging builds the arbor loggers used by every command.
package logging

import (
	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// New returns a console logger at the given level ("info" when empty).
// The console writer belongs to the returned logger only, so loggers built
// later (Quiet included) are not affected by it.
func New(level string) arbor.ILogger {
	if level == "" {
		level = "info"
	}
	console := writers.ConsoleWriter(models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	})
	return arbor.NewLogger().
		WithWriters([]writers.IWriter{console}).
		WithLevelFromString(level)
}

// Quiet returns a logger that discards everything, for tests and for the
// interactive console where log lines would corrupt the terminal UI.
func Quiet() arbor.ILogger {
	return arbor.NewLogger().WithWriters([]writers.IWriter{discard{}})
}

type discard struct{}

func (d discard) WithLevel(log.Level) writers.IWriter { return d }
func (discard) Write(p []byte) (int, error)           { return len(p), nil }
func (discard) GetFilePath() string                   { return "" }
func (discard) Close() error                          { return nil }
