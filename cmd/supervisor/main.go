package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/internal/logger"
	"github.com/NeuralTrust/ReplyGuard/pkg/audit"
	"github.com/NeuralTrust/ReplyGuard/pkg/config"
	"github.com/NeuralTrust/ReplyGuard/pkg/database"
	handlers "github.com/NeuralTrust/ReplyGuard/pkg/handlers/http"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/escalation"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/generator"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/orchestrator"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/ratelimit"
	"github.com/NeuralTrust/ReplyGuard/pkg/server"
	"github.com/NeuralTrust/ReplyGuard/pkg/validator"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("./config"); err != nil {
		log.Printf("config load warning: %v", err)
	}
	cfg := config.GetConfig()

	l := logger.NewLogger(cfg.Log.Level, cfg.Log.File)
	prometheus.Initialize()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var policySource policy.Source
	var watchPath string
	switch cfg.Policy.Source {
	case "redis":
		policySource = policy.NewRedisSource(redisClient, cfg.Policy.RedisKey)
	default:
		policySource = policy.NewFileSource(cfg.Policy.FilePath)
		watchPath = cfg.Policy.FilePath
	}
	policyStore := policy.NewStore(policySource, l, policy.StoreOpts{
		ReloadInterval: cfg.Policy.ReloadInterval,
		WatchPath:      watchPath,
	})
	defer policyStore.Shutdown()

	limiter := ratelimit.NewLimiter(cfg.RateLimit, l, &ratelimit.Opts{Redis: redisClient})
	defer limiter.Shutdown()

	sinks := buildAuditSinks(cfg, l)
	auditWriter := audit.NewWriter(sinks, l, cfg.Audit.Workers)
	defer auditWriter.Shutdown()

	classifierBreaker := httpx.NewCircuitBreaker("classifier", 30*time.Second, 5)
	classifierClient := classifier.NewClient(cfg.Classifier, nil, classifierBreaker, l)

	generatorBreaker := httpx.NewCircuitBreaker("generator", 30*time.Second, 5)
	generatorClient := generator.NewClient(cfg.Generator, nil, generatorBreaker, l)

	escalationSink := escalation.NewSink(cfg.Escalation, nil, l)

	inputValidator := validator.NewInputValidator(cfg.Input, policyStore, limiter, classifierClient, auditWriter, l)
	outputValidator := validator.NewOutputValidator(cfg.Output, policyStore, classifierClient, auditWriter, l)
	orch := orchestrator.NewOrchestrator(cfg.Orchestrator, outputValidator, generatorClient, escalationSink, l)

	srv := server.NewSupervisorServer(server.SupervisorServerDI{
		HandlerTransport: handlers.HandlerTransport{
			ValidateInputHandler:  handlers.NewValidateInputHandler(inputValidator, l),
			ValidateOutputHandler: handlers.NewValidateOutputHandler(orch, l),
			HealthHandler:         handlers.NewHealthHandler(policyStore, auditWriter),
		},
		Config: cfg,
		Logger: l,
	})

	go func() {
		if err := srv.Run(); err != nil {
			l.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down supervisor")
	if err := srv.Shutdown(); err != nil {
		l.WithError(err).Error("server shutdown failed")
	}
}

func buildAuditSinks(cfg *config.Config, l *logrus.Logger) []audit.Sink {
	var sinks []audit.Sink

	fileSink, err := audit.NewFileSink(cfg.Audit.FilePath)
	if err != nil {
		l.WithError(err).Warn("audit file sink unavailable")
	} else {
		sinks = append(sinks, fileSink)
	}

	if cfg.Audit.Postgres {
		db, err := database.NewDB(l, &database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			l.WithError(err).Warn("audit database sink unavailable")
		} else {
			pgSink, err := audit.NewPostgresSink(db.DB)
			if err != nil {
				l.WithError(err).Warn("audit table migration failed")
			} else {
				sinks = append(sinks, pgSink)
			}
		}
	}
	return sinks
}
