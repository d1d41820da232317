// ABOUTME: Bridges retryablehttp's leveled logging into logrus.
// ABOUTME: Key/value pairs become structured logrus fields.

package submission

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type leveledLogger struct {
	logger *logrus.Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

// NewLeveledLogger adapts a logrus logger for retryablehttp
func NewLeveledLogger(logger *logrus.Logger) retryablehttp.LeveledLogger {
	return &leveledLogger{logger: logger}
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l *leveledLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	fields["component"] = "submission_http"
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.logger.WithFields(fields)
}
