package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// level decides which logs a Logger emits
type level int

const (
	levelDebug level = iota
	levelInfo
	levelError
)

var levelColors = map[level]color.Attribute{
	levelDebug: color.FgCyan,
	levelInfo:  color.FgHiBlue,
	levelError: color.FgHiRed,
}

func colorize(colorToUse color.Attribute, fstring string, args ...any) []string {
	msg := fstring
	if len(args) > 0 {
		msg = fmt.Sprintf(fstring, args...)
	}

	lines := strings.Split(msg, "\n")
	sprint := color.New(colorToUse).SprintFunc()
	for i, line := range lines {
		lines[i] = sprint(line)
	}

	return lines
}

func prefixColorize(prefix string) string {
	return colorize(color.FgYellow, "%s", prefix)[0]
}

// Serializes logging across cloned loggers, which is what the batch runner's jobs use
type syncWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func (s *syncWriter) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Write(p)
}

// Logger is a wrapper around log.Logger with the following features:
//   - Supports a prefix, plus a stack of secondary prefixes
//   - Adds colors to the output when writing to a terminal
//   - Debug mode (all logs, debug and above)
//   - Quiet mode (errors only), used for batches where only failures matter
type Logger struct {
	// IsDebug is used to determine whether to emit debug logs.
	IsDebug bool

	// IsQuiet suppresses everything but errors. It takes precedence over IsDebug.
	IsQuiet bool

	// prefix is the prefix to be used for all logs.
	prefix string

	// secondaryPrefixes is a slice of prefixes that are printed after Logger.prefix
	secondaryPrefixes []string

	logger log.Logger

	outputWriter *syncWriter
}

// GetLogger returns a logger writing to stdout. Colors are only used if stdout is a terminal.
func GetLogger(isDebug bool, prefix string) *Logger {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	return NewLogger(os.Stdout, isDebug, prefix)
}

// NewLogger returns a logger writing to w
func NewLogger(w io.Writer, isDebug bool, prefix string) *Logger {
	sharedWriter := &syncWriter{writer: w}
	return &Logger{
		logger:       *log.New(sharedWriter, prefixColorize(prefix), 0),
		IsDebug:      isDebug,
		prefix:       prefix,
		outputWriter: sharedWriter,
	}
}

// Clone clones a given logger
// Uses the same outputwriter to ensure logs are serialized
// when a clone and an original is running concurrently
func (l *Logger) Clone() *Logger {
	secondaryPrefixesCopy := make([]string, len(l.secondaryPrefixes))
	copy(secondaryPrefixesCopy, l.secondaryPrefixes)

	cloned := &Logger{
		IsDebug:           l.IsDebug,
		IsQuiet:           l.IsQuiet,
		prefix:            l.prefix,
		secondaryPrefixes: secondaryPrefixesCopy,
		outputWriter:      l.outputWriter,
	}

	cloned.logger = *log.New(cloned.outputWriter, "", 0)
	cloned.updateLoggerPrefix()

	return cloned
}

// GetLastSecondaryPrefix returns the last secondary prefix
func (l *Logger) GetLastSecondaryPrefix() string {
	if len(l.secondaryPrefixes) == 0 {
		return ""
	}
	return l.secondaryPrefixes[len(l.secondaryPrefixes)-1]
}

func (l *Logger) updateLoggerPrefix() {
	fullPrefix := l.prefix
	for _, secondaryPrefix := range l.secondaryPrefixes {
		fullPrefix += fmt.Sprintf("[%s] ", secondaryPrefix)
	}
	l.logger.SetPrefix(prefixColorize(fullPrefix))
}

// PushSecondaryPrefix pushes a new secondary prefix to secondaryPrefixes
func (l *Logger) PushSecondaryPrefix(prefix string) {
	l.secondaryPrefixes = append(l.secondaryPrefixes, prefix)
	l.updateLoggerPrefix()
}

// PopSecondaryPrefix removes the secondary prefix from the top of secondaryPrefixes
func (l *Logger) PopSecondaryPrefix() string {
	if len(l.secondaryPrefixes) == 0 {
		return ""
	}
	lastPrefix := l.secondaryPrefixes[len(l.secondaryPrefixes)-1]
	l.secondaryPrefixes = l.secondaryPrefixes[:len(l.secondaryPrefixes)-1]
	l.updateLoggerPrefix()
	return lastPrefix
}

// WithAdditionalSecondaryPrefix runs fn with prefix pushed for its duration
func (l *Logger) WithAdditionalSecondaryPrefix(prefix string, fn func()) {
	l.PushSecondaryPrefix(prefix)
	defer l.PopSecondaryPrefix()
	fn()
}

func (l *Logger) enabled(lvl level) bool {
	switch {
	case l.IsQuiet:
		return lvl >= levelError
	case l.IsDebug:
		return true
	default:
		return lvl >= levelInfo
	}
}

func (l *Logger) emit(lvl level, colorToUse color.Attribute, fstring string, args ...any) {
	if !l.enabled(lvl) {
		return
	}

	for _, line := range colorize(colorToUse, fstring, args...) {
		l.logger.Println(line)
	}
}

func (l *Logger) Successf(fstring string, args ...any) {
	l.emit(levelInfo, color.FgHiGreen, fstring, args...)
}

func (l *Logger) Infof(fstring string, args ...any) {
	l.emit(levelInfo, levelColors[levelInfo], fstring, args...)
}

func (l *Logger) Infoln(msg string) {
	l.emit(levelInfo, levelColors[levelInfo], "%s", msg)
}

func (l *Logger) Errorf(fstring string, args ...any) {
	l.emit(levelError, levelColors[levelError], fstring, args...)
}

func (l *Logger) Errorln(msg string) {
	l.emit(levelError, levelColors[levelError], "%s", msg)
}

func (l *Logger) Debugf(fstring string, args ...any) {
	l.emit(levelDebug, levelColors[levelDebug], fstring, args...)
}

func (l *Logger) Debugln(msg string) {
	l.emit(levelDebug, levelColors[levelDebug], "%s", msg)
}

// Plainln logs every line of msg without color at info level. Its signature matches an Executable's loggerFunc.
func (l *Logger) Plainln(msg string) {
	if !l.enabled(levelInfo) {
		return
	}

	for line := range strings.SplitSeq(msg, "\n") {
		l.logger.Println(line)
	}
}
