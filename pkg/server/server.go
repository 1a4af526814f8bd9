package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/NeuralTrust/ReplyGuard/pkg/config"
	handlers "github.com/NeuralTrust/ReplyGuard/pkg/handlers/http"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
)

type (
	SupervisorServerDI struct {
		HandlerTransport handlers.HandlerTransport
		Config           *config.Config
		Logger           *logrus.Logger
	}
	SupervisorServer struct {
		router           *fiber.App
		handlerTransport handlers.HandlerTransport
		config           *config.Config
		logger           *logrus.Logger
	}
)

func NewSupervisorServer(di SupervisorServerDI) *SupervisorServer {
	router := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		},
	})
	return &SupervisorServer{
		router:           router,
		handlerTransport: di.HandlerTransport,
		config:           di.Config,
		logger:           di.Logger,
	}
}

func (s *SupervisorServer) Run() error {
	s.setupRoutes()
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithField("addr", addr).Info("starting supervisor server")
	return s.router.Listen(addr)
}

func (s *SupervisorServer) Shutdown() error {
	return s.router.Shutdown()
}

func (s *SupervisorServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		validate := v1.Group("/validate")
		{
			validate.Post("/input", s.handlerTransport.ValidateInputHandler.Handle)
			validate.Post("/output", s.handlerTransport.ValidateOutputHandler.Handle)
		}
	}

	s.router.Get("/health", s.handlerTransport.HealthHandler.Handle)

	metricsHandler := promhttp.HandlerFor(prometheus.Registry(), promhttp.HandlerOpts{})
	s.router.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metricsHandler)(c.Context())
		return nil
	})
}
