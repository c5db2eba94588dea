package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the process-wide logrus level and format. format is
// "json" or "text"; unknown levels fall back to info.
func ConfigureLogging(level, format string) {
	logrus.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if err != nil && level != "" {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", level)
	}
}
