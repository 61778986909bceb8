// Package log is the leveled logger used across xmeta. Lines are written as
// coloured text on terminals, plain text, or JSON, optionally mirrored into
// a rotating file.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	mu     *sync.Mutex
	writer io.Writer
	fields []field

	Name  string
	Level LogLevel

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *LoggerRotation
}

type LoggerRotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type field struct {
	key   string
	value any
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Service   string         `json:"service,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type LoggerOption func(*Logger) error

func WithLevel(level LogLevel) LoggerOption {
	return func(l *Logger) error {
		l.Level = level
		return nil
	}
}

// WithFile mirrors every line into a lumberjack rotated file.
func WithFile(file string) LoggerOption {
	return func(l *Logger) error {
		l.File = file
		return nil
	}
}

func WithRotation(rotation LoggerRotation) LoggerOption {
	return func(l *Logger) error {
		l.Rotation = &rotation
		return nil
	}
}

func WithJSON() LoggerOption {
	return func(l *Logger) error {
		l.JSON = true
		return nil
	}
}

func WithoutColor() LoggerOption {
	return func(l *Logger) error {
		l.NoColor = true
		return nil
	}
}

// WithoutTerminal disables stdout. Without a file, lines are then dropped.
func WithoutTerminal() LoggerOption {
	return func(l *Logger) error {
		l.NoTerminal = true
		return nil
	}
}

// WithOutput replaces stdout with w; colours are disabled.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) error {
		if w == nil {
			return fmt.Errorf("log: output writer is nil")
		}
		l.writer = w
		l.NoColor = true
		return nil
	}
}

func NewLogger(name string, options ...LoggerOption) (*Logger, error) {
	l := &Logger{
		mu: &sync.Mutex{},

		Name:  name,
		Level: Info,

		TimeFormat: "2006-01-02 15:04:05",
		Rotation: &LoggerRotation{
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
			Compress:   false,
		},
	}

	for _, opt := range options {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	l.setupWriter()
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{
		mu:         &sync.Mutex{},
		writer:     io.Discard,
		Level:      Fatal + 1,
		NoTerminal: true,
		NoColor:    true,
	}
}

func (l *Logger) setupWriter() {
	var writers []io.Writer

	if !l.NoTerminal {
		if l.writer != nil {
			writers = append(writers, l.writer)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if l.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		}
		writers = append(writers, fileWriter)
		// Escape codes would end up in the file.
		l.NoColor = true
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	l.writer = io.MultiWriter(writers...)
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formattedMsg := fmt.Sprintf(msg, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   formattedMsg,
		}
		if l.Name != "" {
			entry.Service = l.Name
		}
		if len(l.fields) > 0 {
			entry.Fields = make(map[string]any, len(l.fields))
			for _, f := range l.fields {
				entry.Fields[f.key] = f.value
			}
		}

		jsonBytes, _ := json.Marshal(entry)
		fmt.Fprintf(l.writer, "%s\n", jsonBytes)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if l.Name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
		}
		formattedMsg += l.formatFields()

		if !l.NoTerminal && !l.NoColor {
			fmt.Fprintf(l.writer, "%s%s %s%s\n", level.Color(), prefix, formattedMsg, colorReset)
		} else {
			fmt.Fprintf(l.writer, "%s %s\n", prefix, formattedMsg)
		}
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, f := range l.fields {
		fmt.Fprintf(&sb, " %s=%v", f.key, f.value)
	}
	return sb.String()
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

// Named returns a sub-logger writing through the same output.
func (l *Logger) Named(name string) *Logger {
	child := l.clone()
	if l.Name == "" {
		child.Name = name
	} else {
		child.Name = fmt.Sprintf("%s/%s", l.Name, name)
	}
	return child
}

// With returns a logger that appends key=value to every line.
func (l *Logger) With(key string, value any) *Logger {
	child := l.clone()
	child.fields = append(child.fields, field{key: key, value: value})
	return child
}

func (l *Logger) clone() *Logger {
	return &Logger{
		mu:     l.mu,
		writer: l.writer, // Share the same writer
		fields: append([]field(nil), l.fields...),

		Name:  l.Name,
		Level: l.Level,

		TimeFormat: l.TimeFormat,
		File:       l.File,
		NoColor:    l.NoColor,
		NoTerminal: l.NoTerminal,
		JSON:       l.JSON,
		Rotation:   l.Rotation,
	}
}
