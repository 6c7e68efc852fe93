package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"geopharm/internal/config"
	"geopharm/internal/database"
	"geopharm/internal/domain"
	custommiddleware "geopharm/internal/middleware"
	"geopharm/internal/notify"
	"geopharm/internal/repository"
	"geopharm/internal/service"
	"geopharm/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       database.Service
	redis    *redis.Client
	notifier notify.Notifier
	search   service.SearchEngine
}

// handlers is everything the router mounts
type handlers struct {
	search     *transport.SearchHandler
	pharmacies *transport.PharmacyHandler
	inventory  *transport.InventoryHandler
	alerts     *transport.AlertHandler
	dashboard  *transport.DashboardHandler
}

// NewNotifier returns the RabbitMQ notifier when a broker is configured and
// the log notifier otherwise
func NewNotifier(cfg config.RabbitMQConfig, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.URL == "" {
		logger.Info("No RabbitMQ URL configured, events will be logged")
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewRabbitMQNotifier(cfg.URL, cfg.Exchange, cfg.PoolSize, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing events to RabbitMQ", zap.String("exchange", cfg.Exchange))
	return n, nil
}

// NewRedisClient connects the rate limiter's store
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, notifier notify.Notifier) *Server {
	sqlDB := db.DB()

	// Initialize repositories
	inventoryRepo := repository.NewInventoryRepository(sqlDB)
	drugRepo := repository.NewDrugRepository(sqlDB)
	pharmacyRepo := repository.NewPharmacyRepository(sqlDB)
	priceChangeRepo := repository.NewPriceChangeRepository(sqlDB)
	alertRepo := repository.NewAlertRepository(sqlDB)
	dashboardRepo := repository.NewDashboardRepository(sqlDB)
	historyRepo := repository.NewSearchHistoryRepository(sqlDB)

	// Initialize services
	inventoryService := service.NewInventoryService(inventoryRepo, drugRepo, logger)
	priceLedger := service.NewPriceLedger(inventoryRepo, priceChangeRepo, notifier, logger)
	alertEngine := service.NewAlertEngine(inventoryRepo, alertRepo, notifier, cfg.Alerts.ExpiryWindowDays, logger)
	searchEngine := service.NewSearchEngine(inventoryRepo, pharmacyRepo, drugRepo, historyRepo, cfg.Search, logger)
	dashboardService := service.NewDashboardService(dashboardRepo, inventoryRepo, cfg.Alerts.ExpiryWindowDays, logger)
	pharmacyService := service.NewPharmacyService(pharmacyRepo, notifier, logger)

	// Initialize handlers
	h := handlers{
		search:     transport.NewSearchHandler(searchEngine, logger),
		pharmacies: transport.NewPharmacyHandler(pharmacyService, logger),
		inventory:  transport.NewInventoryHandler(inventoryService, priceLedger, logger),
		alerts:     transport.NewAlertHandler(alertEngine, logger),
		dashboard:  transport.NewDashboardHandler(dashboardService, logger),
	}

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      newRouter(cfg, logger, h, redisClient, db.Health),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:   cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		notifier: notifier,
		search:   searchEngine,
	}
}

func newRouter(cfg *config.Config, logger *zap.Logger, h handlers, redisClient *redis.Client, health func() map[string]string) http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.ValidationMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, stats)
	})

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	searchLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Search.RateLimitPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:search",
	}, logger)

	// Public discovery
	h.search.RegisterRoutes(router, optionalAuth, searchLimit)
	h.pharmacies.RegisterRoutes(router, authMiddleware)

	// Pharmacy owners
	router.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(custommiddleware.RequireRole([]domain.Role{domain.RolePharmacyOwner}, logger))
		h.inventory.RegisterRoutes(r)
		h.alerts.RegisterRoutes(r)
		h.dashboard.RegisterRoutes(r)
	})

	// Admins
	router.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(custommiddleware.RequireAdmin(logger))
		h.pharmacies.RegisterAdminRoutes(r)
		h.search.RegisterAdminRoutes(r)
	})

	return router
}

// Close waits for background search history writes, then releases the
// broker, redis and database connections
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.search != nil {
		s.search.Wait()
	}

	if c, ok := s.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Error("Failed to close notifier", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
