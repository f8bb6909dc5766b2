// Package logger provides the leveled stdlib logger shared by the
// diffsync server, client, and demo binaries.
package logger

import (
	"log"
	"os"
)

type Logger struct {
	info  *log.Logger
	error *log.Logger
	debug *log.Logger
	fatal *log.Logger
}

var Default = New()

func New() *Logger {
	return &Logger{
		info:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		error: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
		debug: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
		fatal: log.New(os.Stderr, "[FATAL] ", log.LstdFlags),
	}
}

func (l *Logger) Info(format string, v ...any) {
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.error.Printf(format, v...)
}

func (l *Logger) Debug(format string, v ...any) {
	l.debug.Printf(format, v...)
}

// Fatal logs at fatal level and terminates the process with exit
// status 1.
func (l *Logger) Fatal(format string, v ...any) {
	l.fatal.Printf(format, v...)
	os.Exit(1)
}

func Info(format string, v ...any) {
	Default.Info(format, v...)
}

func Error(format string, v ...any) {
	Default.Error(format, v...)
}

func Debug(format string, v ...any) {
	Default.Debug(format, v...)
}

func Fatal(format string, v ...any) {
	Default.Fatal(format, v...)
}
