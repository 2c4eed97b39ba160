package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/wastecast/internal/log"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/internal/report"
	"github.com/chrissnell/wastecast/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	service      *report.Service
	db           Pinger
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller. db may be nil when
// no database is configured.
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, service *report.Service, db Pinger, m *metrics.Metrics, logger *zap.SugaredLogger) (*Controller, error) {
	if service == nil {
		return nil, fmt.Errorf("REST server requires a report service")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}

	limit := rate.Inf
	if sc.RateLimit > 0 {
		limit = rate.Limit(sc.RateLimit)
	}
	burst := sc.RateBurst
	if burst < 1 {
		burst = 1
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		service:      service,
		db:           db,
		metrics:      m,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.TLSCert != "" && c.serverConfig.TLSKey != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.TLSCert, c.serverConfig.TLSKey); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the full middleware chain around the router
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()
	h = log.AccessLogMiddleware(c.logger)(h)
	h = requestIDMiddleware(h)
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.metricsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.rateLimitMiddleware)
	api.HandleFunc("/forecast", c.handlers.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/timeseries", c.handlers.GetTimeSeries).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(c.metrics.Registry, promhttp.HandlerOpts{}))

	return router
}
