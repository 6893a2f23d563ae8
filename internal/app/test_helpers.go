package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

// newTestConfig возвращает настройки in-memory кассы на свободных портах.
func newTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.JWTSecret = "app-test-secret"
	cfg.KafkaBrokers = nil
	return cfg
}

func newTestLogger(t *testing.T) *log.Entry {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("test", t.Name())
}
