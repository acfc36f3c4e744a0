package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger sets up the global logrus logger.
// Log level comes from LOG_LEVEL, optional rotating file output from LOG_FILE.
func InitLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := log.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = log.InfoLevel
	}

	log.SetLevel(level)

	logFile := os.Getenv("LOG_FILE")
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}

		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}
