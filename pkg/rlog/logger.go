// Package rlog defines the logging interface used across Replica.
package rlog

// Logger is a leveled key/value logger. Every Replica component takes one.
type Logger interface {
	Info(s string, keyValues ...any)
	Error(s string, keyValues ...any)
	Debug(s string, keyValues ...any)
	Warn(s string, keyValues ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a discarding Logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
