package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
	"github.com/rhayalcantara/proyectos-sub001/internal/handler"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
	"github.com/rhayalcantara/proyectos-sub001/internal/presence"
	"github.com/rhayalcantara/proyectos-sub001/internal/push"
	"github.com/rhayalcantara/proyectos-sub001/internal/repository"
	"github.com/rhayalcantara/proyectos-sub001/internal/service"
	"github.com/rhayalcantara/proyectos-sub001/pkg/auth"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-gateway",
	})
	logger := log.L()

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set")
	}

	logger.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("starting chat gateway")

	// Persisted chat store
	db, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	store := repository.NewGormChatStore(db)

	// Presence cache
	presenceStore, err := presence.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer presenceStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("connected to Redis")

	// Push notification dispatcher
	pushSender, err := push.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.PushTopic, cfg.Kafka.Partitions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Kafka producer")
	}
	defer pushSender.Close()
	logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.PushTopic).Msg("connected to Kafka")

	authMgr := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Lifetime)

	// Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	// Services
	gatewaySvc := service.NewGatewayService(wsHub, store, presenceStore)
	callSvc := service.NewCallService(wsHub, store, pushSender)

	// gRPC health endpoint for orchestration probes
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", grpcAddr).Msg("gRPC listen failed")
		}
		logger.Info().Str("addr", grpcAddr).Msg("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()
	defer grpcServer.GracefulStop()

	// HTTP + websocket
	wsHandler := handler.NewWSHandler(wsHub, gatewaySvc, callSvc, authMgr, presenceStore, cfg.WebSocket)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat gateway stopped")
}
