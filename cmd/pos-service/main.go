// Команда pos-service запускает кассу: HTTP API, метрики и фоновые воркеры.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/app"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file loaded before reading POS_* variables")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFile); err != nil {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}
	log.Info("pos-service остановлен")
}

// run читает настройки, настраивает логгер и блокируется до отмены ctx.
func run(ctx context.Context, envFile string) error {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogger(log.StandardLogger(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"version":      version.String(),
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем pos-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
