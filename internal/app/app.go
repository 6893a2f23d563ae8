package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const healthSyncInterval = 5 * time.Second

// Run поднимает кассу: HTTP API, метрики и health, gRPC health, фоновые воркеры.
// Возвращает ctx.Err() после штатной остановки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		producer = nil
	}
	defer closeKafka(producer, logger)

	var events kafka.EventPublisher
	if producer != nil {
		events = producer
	}

	reg := prometheus.DefaultRegisterer
	svc, err := createServices(cfg, deps, events, reg, logger)
	if err != nil {
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorkers(workersCtx, &workers, cfg, deps, svc, producer, reg, logger)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.Checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	grpcServer, healthServer := newGRPCServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}
	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	apiSrv := &http.Server{
		Handler:           svc.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC health слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	healthSync := startGRPCHealthSync(ctx, healthHandler, healthServer, healthSyncInterval)
	defer healthSync.stop()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем кассу")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			logger.WithError(err).Error("server failed")
			runErr = err
		}
	}

	healthSync.markNotServing()
	shutdownServer(apiSrv, cfg.ShutdownTimeout, logger)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	shutdownHTTP(metricsSrv, logger)

	return runErr
}

// startWorkers запускает outbox-воркер (только при наличии Kafka), очистку ключей
// идемпотентности и закрытие простаивающих сессий.
func startWorkers(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg Config,
	deps *Dependencies,
	svc *services,
	producer *kafka.Producer,
	reg prometheus.Registerer,
	logger *log.Entry,
) {
	if producer != nil {
		worker := outbox.NewWorker(deps.Outbox, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithMetrics(metrics.NewOutboxMetrics(reg)),
			outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, cfg.KafkaTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	} else {
		logger.Warn("kafka is not configured, outbox messages stay pending")
	}

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(svc.idemMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.sessions.RunExpiry(ctx, cfg.SessionIdleTimeout, cfg.SessionSweepInterval)
	}()
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	reflection.Register(srv)
	grpcMetrics.InitializeMetrics(srv)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return srv, healthServer
}

// grpcHealthSync переносит агрегированный статус зависимостей в gRPC health.
type grpcHealthSync struct {
	srv    *health.Server
	cancel context.CancelFunc
	done   chan struct{}
}

func startGRPCHealthSync(ctx context.Context, checks *healthcheck.Handler, srv *health.Server, interval time.Duration) *grpcHealthSync {
	ctx, cancel := context.WithCancel(ctx)
	h := &grpcHealthSync{srv: srv, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		syncGRPCHealth(ctx, checks, srv, interval)
	}()
	return h
}

// stop останавливает синхронизацию и ждёт её завершения.
func (h *grpcHealthSync) stop() {
	h.cancel()
	<-h.done
}

// markNotServing останавливает синхронизацию и выставляет NOT_SERVING.
// После этого очередной тик уже не вернёт SERVING.
func (h *grpcHealthSync) markNotServing() {
	h.stop()
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

func syncGRPCHealth(ctx context.Context, checks *healthcheck.Handler, srv *health.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, _ := checks.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if status == healthcheck.StatusUnhealthy {
			srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		} else {
			srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func stopGRPC(srv *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем gRPC")
		srv.Stop()
	}
}

// startMetricsServer запускает /metrics для Prometheus и health endpoints.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер метрик.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	shutdownServer(srv, 5*time.Second, logger)
}

func shutdownServer(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
