package contract

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger. It writes to stderr so that
// report output on stdout stays machine-readable.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetVerbose switches debug logging on or off.
func SetVerbose(verbose bool) {
	if verbose {
		Logger.SetLevel(logrus.DebugLevel)
		return
	}
	Logger.SetLevel(logrus.WarnLevel)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	Logger.WithError(err).Fatal(msg)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	Logger.WithError(err).Warn(msg)
}

// LogDebug logs a diagnostic message that is only shown in verbose mode.
func LogDebug(msg string, err error) {
	if err == nil {
		Logger.Debug(msg)
		return
	}
	Logger.WithError(err).Debug(msg)
}

// LogFields returns an entry carrying structured fields, e.g. a file path.
func LogFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}
