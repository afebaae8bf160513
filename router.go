package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/handler"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/service"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/tools"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"

	_ "github.com/alex-paystack/command-centre-api-sub000/pkg/tools/all"
)

type Server struct {
	ginEngine  *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	reaperStop context.CancelFunc
}

func NewServer() *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware for the dashboard frontend and local development.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if v := strings.TrimSpace(os.Getenv("COMMAND_CENTRE_ALLOWED_ORIGIN")); v != "" && origin == v {
				allowed = true
			}

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-User-Id")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	return &Server{
		ginEngine: ginEngine,
		logger:    utils.GetLogger(),
	}
}

// Start wires storage, services, and routes, then begins serving. It returns
// once the listener is bound; serving continues in the background.
func (s *Server) Start(cfg *config.AppConfig) error {
	gormDB, err := gorm.Open(sqlite.Open(cfg.DatabasePath()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath(), err)
	}

	store := db.NewStore(gormDB)
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	policy := &cfg.Assistant
	modelService := service.NewModelService(&cfg.Model)
	source := tools.NewStaticDashboardSource()

	chatService := service.NewChatService(
		store,
		policy,
		service.NewEntitlementService(store, policy),
		service.NewModelClassifier(modelService, policy),
		service.NewContextBuilder(store, policy),
		service.NewSummarizationEngine(store, service.NewModelSummarizer(modelService), policy),
		service.NewAgentRuntime(modelService),
		modelService,
		source,
	)

	reaperCtx, cancel := context.WithCancel(context.Background())
	s.reaperStop = cancel
	service.NewReaper(store, time.Hour).Start(reaperCtx)

	api := s.ginEngine.Group("/api/v1")
	handler.NewChatHandler(chatService).RegisterRoutes(api)

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host(), cfg.Port())
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{Handler: s.ginEngine}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	s.logger.Info("Server started", "addr", addr)
	return nil
}

// Shutdown stops the reaper and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.reaperStop != nil {
		s.reaperStop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
