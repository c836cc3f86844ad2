package log

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Verbose controls whether debug messages are being printed.
var Verbose bool

// IndentationLevel controls the amount of indentation of log messages.
var IndentationLevel = 0

// Spinner is shown while a long running external tool is busy.
var Spinner = newSpinner()

var errorOccured = false

var logger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &formatter{},
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.DebugLevel,
}

const (
	successField = "success"
	plainField   = "plain"
)

var levelPrefixes = map[logrus.Level]string{
	logrus.DebugLevel: "\033[36mDebug: \033[0m",
	logrus.WarnLevel:  "\033[33mWarning: \033[0m",
	logrus.ErrorLevel: "\033[31mError: \033[0m",
}

// formatter renders entries the way the command line expects them: indented, with a colored
// level prefix and no timestamps.
type formatter struct{}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("  ", IndentationLevel))
	if _, ok := entry.Data[successField]; ok {
		buf.WriteString("\033[32mSuccess: \033[0m")
	} else if _, ok := entry.Data[plainField]; !ok {
		buf.WriteString(levelPrefixes[entry.Level])
	}
	buf.WriteString(entry.Message)
	return buf.Bytes(), nil
}

func newSpinner() *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = os.Stderr
	return s
}

var isTerminal = func(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ShowSpinner reports whether Spinner should be shown: stderr is a terminal and debug output is off.
func ShowSpinner() bool {
	return !Verbose && isTerminal(os.Stderr.Fd())
}

// ErrorOccured reports whether any errors have occured.
func ErrorOccured() bool {
	return errorOccured
}

// Log prints an indented and formatted message to os.Stderr.
func Log(format string, a ...interface{}) {
	logger.Infof(format, a...)
}

// Debug prints an indented and formatted debug message to os.Stderr if verbose output is selected.
func Debug(format string, a ...interface{}) {
	if Verbose {
		logger.Debugf(format, a...)
	}
}

// Success prints an indented and formatted success message to os.Stderr.
func Success(format string, a ...interface{}) {
	logger.WithField(successField, true).Infof(format, a...)
}

// Warning prints an indented and formatted warning to os.Stderr.
func Warning(format string, a ...interface{}) {
	logger.Warnf(format, a...)
}

// Error prints an indented and formatted error message to os.Stderr.
func Error(format string, a ...interface{}) {
	errorOccured = true
	logger.Errorf(format, a...)
}

// Fatal prints an indented and formatted error message to os.Stderr and terminates the program.
func Fatal(format string, a ...interface{}) {
	Error(format, a...)
	logger.WithField(plainField, true).Errorf("\033[31mA fatal error occured. Exiting...\033[0m\n")
	os.Exit(1)
}
