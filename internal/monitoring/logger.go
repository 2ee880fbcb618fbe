package monitoring

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the process logger behind Logf. It writes timestamped lines to
// stderr under the "seamprofile" prefix.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "seamprofile",
	ReportTimestamp: true,
})

// Logf is the package-level diagnostic logger. It defaults to Logger.Infof
// but may be replaced by SetLogger. Tests or production code can redirect
// or mute it.
var Logf func(format string, v ...interface{}) = Logger.Infof

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLevel sets the minimum level of Logger from a name such as "debug",
// "info" or "warn".
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects Logger.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}
