package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"warden/config"
)

// Setup configures the global logrus logger from config: level, format and
// sinks. Returns a shutdown function that flushes the external sink.
func Setup(cfg *config.Config) func() {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	writers := []io.Writer{os.Stdout}
	if cfg.LogFilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFilePath,
			MaxSize:    int(cfg.LogMaxBytes / (1024 * 1024)),
			MaxBackups: cfg.LogBackups,
			Compress:   true,
		})
	}
	log.SetOutput(io.MultiWriter(writers...))

	if cfg.ExternalLogURL != "" {
		hook := NewExternalHook(cfg.ExternalLogURL, cfg.ExternalLogAPIKey)
		log.AddHook(hook)
		return hook.Close
	}
	return func() {}
}
