package logger

import (
	"github.com/generationsoftware/autotasks/src/utils/config"

	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
}

func Init(config *config.Config) (err error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}
	logger.SetFormatter(formatter)

	return nil
}

func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "autotasks." + tag})
}

// Logger used by the sub loggers, exposed for tests that need to capture output
func Root() *logrus.Logger {
	return logger
}
