package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/metrics"
	"github.com/helmcode/crewboard/internal/stats"
	"github.com/helmcode/crewboard/internal/store"
)

// Options configures optional collaborators of the Server. Zero values fall
// back to a no-op publisher, a fresh metrics registry and "*" origins.
type Options struct {
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	AllowOrigins string
}

// Server holds dependencies for the HTTP API.
type Server struct {
	App     *fiber.App
	store   *store.Store
	stats   *stats.Aggregator
	events  events.Publisher
	metrics *metrics.Metrics
}

// NewServer creates a Fiber app with middleware and registers all routes.
func NewServer(db *gorm.DB, opts Options) *Server {
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:      "Crewboard API",
		ErrorHandler: globalErrorHandler,
	})

	// Middleware.
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  opts.AllowOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders: "X-Request-ID,X-Query-Count",
	}))
	app.Use(requestLogger(opts.Metrics))

	s := &Server{
		App:     app,
		store:   store.New(db),
		stats:   stats.New(db),
		events:  opts.Publisher,
		metrics: opts.Metrics,
	}

	s.registerRoutes()
	return s
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	slog.Info("starting HTTP server", "addr", addr)
	return s.App.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	slog.Info("shutting down HTTP server")
	return s.App.Shutdown()
}

// emit publishes an entity change and counts the outcome. It never fails the
// request.
func (s *Server) emit(c *fiber.Ctx, eventType events.Type, entityID string, payload interface{}) {
	err := events.Emit(c.UserContext(), s.events, eventType, entityID, payload)
	s.metrics.RecordEvent(string(eventType), err)
}
