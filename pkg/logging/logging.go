package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus instance for interactive CLI use: text
// output with full timestamps on stderr so log lines never interleave with
// the prompt on stdout.
func Init(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
}
