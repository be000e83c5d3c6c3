package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel string

const (
	InfoLevel  LogLevel = "INFO"
	ErrorLevel LogLevel = "ERROR"
	DebugLevel LogLevel = "DEBUG"
)

// LogEntry describes the structure of a log message
type LogEntry struct {
	Time    string   `json:"time"`
	Level   LogLevel `json:"level"`
	Module  string   `json:"module,omitempty"`
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
}

// Options controls where log lines go and which levels are written.
type Options struct {
	Level      string // "debug" enables debug lines
	File       string // optional rotating file, in addition to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger is a centralized structured logger
type Logger struct {
	out *log.Logger
}

// shared by every Logger so Setup can redirect loggers created at package init
var (
	std   = log.New(os.Stdout, "", 0)
	debug atomic.Bool
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex = regexp.MustCompile(`eyJ[^\s]+`)
)

// New creates a new Logger
func New() *Logger {
	return &Logger{out: std}
}

// Setup applies opts to all loggers. The returned closer releases the log
// file, if one was opened.
func Setup(opts Options) io.Closer {
	debug.Store(strings.EqualFold(opts.Level, "debug"))

	if opts.File == "" {
		std.SetOutput(os.Stdout)
		return nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	std.SetOutput(io.MultiWriter(os.Stdout, rotating))
	return rotating
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetOutput redirects all loggers to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Anonymize replaces sensitive information in logs (emails, tokens)
func Anonymize(s string) string {
	// Replace emails with [REDACTED_EMAIL]
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")

	// Replace JWT tokens (flash cookies included) with [REDACTED_TOKEN]
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")

	return s
}

// internal log function
func (l *Logger) log(module string, level LogLevel, msg string, err error) {
	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339),
		Level:   level,
		Module:  module,
		Message: Anonymize(msg),
	}
	if err != nil {
		entry.Error = Anonymize(err.Error())
	}
	data, _ := json.Marshal(entry)
	l.out.Println(string(data))
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.log(module, InfoLevel, msg, nil)
}

func (l *Logger) Debug(module, msg string) {
	if !debug.Load() {
		return
	}
	l.log(module, DebugLevel, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, ErrorLevel, msg, err)
}
