// Package stubserver is an in-memory stand-in for the loyalty backend. It
// honours the HTTP contract the shop client consumes and lets tests inject
// failures and latency.
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/loyalty-shop/internal/common"
	"github.com/noah-isme/loyalty-shop/internal/health"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/ratelimit"
	"github.com/noah-isme/loyalty-shop/internal/security"
)

// Config wires the optional collaborators of the stub server.
type Config struct {
	Store          *Store
	Logger         zerolog.Logger
	Metrics        *obs.HTTPMetrics
	Tracing        bool
	Redis          *redis.Client
	IdempotencyTTL time.Duration
	RateLimit      string
	BodyLimit      int64
	AllowedOrigins []string
	// CheckoutLimit caps checkouts per customer within CheckoutWindow. It
	// needs Redis; zero disables it.
	CheckoutLimit  int
	CheckoutWindow time.Duration
	// SkipReadinessChecks makes /health/ready report only the process flag.
	SkipReadinessChecks bool
}

type fault struct {
	status  int
	message string
}

// Server serves the loyalty backend contract from an in-memory Store.
type Server struct {
	store   *Store
	logger  zerolog.Logger
	cfg     Config
	handler http.Handler

	mu       sync.Mutex
	sessions map[string]int64
	faults   map[string][]fault
	delay    time.Duration
}

// New builds a Server. A nil Store is replaced by SeededStore().
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		cfg.Store = SeededStore()
	}
	s := &Server{
		store:    cfg.Store,
		logger:   cfg.Logger,
		cfg:      cfg,
		sessions: map[string]int64{},
		faults:   map[string][]fault{},
	}
	h, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = h
	return s, nil
}

// Store exposes the backing store.
func (s *Server) Store() *Store { return s.store }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// FailNext makes the next request to path answer with status and an
// {"error": message} body.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], fault{status: status, message: message})
}

// SetDelay holds every contract request for d before answering.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) routes() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(s.sessionContext)
	if s.cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if s.cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: s.cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: s.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(s.cfg.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", common.IdempotencyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(s.cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limiterhttp.NewMiddleware(limiter.New(memory.NewStore(), rate)).Handler)
	}

	hh := health.Handler{Checks: s.healthChecks()}
	r.Get("/health/live", hh.Live)
	r.Get("/health/ready", hh.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(security.BodyLimit{Max: s.cfg.BodyLimit}.Middleware)
		r.Use(s.injectFaults)
		r.Post(loyalty.PathLogin, s.login)
		r.Get(loyalty.PathLogout, s.logout)
		r.Get(loyalty.PathProducts, s.products)
		r.With(
			s.checkoutLimit().Middleware,
			common.Idem{R: s.cfg.Redis, TTL: s.cfg.IdempotencyTTL}.Middleware,
		).Post(loyalty.PathCheckout, s.checkout)
	})
	return r, nil
}

func (s *Server) checkoutLimit() ratelimit.Handler {
	h := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: s.cfg.Redis, Prefix: "checkout_rl:"},
		Config: ratelimit.Config{
			Window:  s.cfg.CheckoutWindow,
			Max:     s.cfg.CheckoutLimit,
			Message: "Too many checkout attempts",
		},
		OnError: func(err error) {
			s.logger.Warn().Err(err).Msg("checkout_rate_limit_unavailable")
		},
	}
	if s.cfg.Redis == nil || s.cfg.CheckoutLimit <= 0 {
		return h
	}
	if h.Config.Window <= 0 {
		h.Config.Window = time.Minute
	}
	h.Config.Key = func(r *http.Request) string {
		id, ok := s.customerFor(r)
		if !ok {
			return ""
		}
		return "customer:" + strconv.FormatInt(id, 10)
	}
	return h
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		delay := s.delay
		var f *fault
		if queue := s.faults[r.URL.Path]; len(queue) > 0 {
			f = &queue[0]
			s.faults[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-r.Context().Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if f != nil {
			common.JSONError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthChecks() map[string]health.Check {
	if s.cfg.SkipReadinessChecks {
		return nil
	}
	checks := map[string]health.Check{
		"store": func(context.Context) error {
			if s.store == nil {
				return errors.New("store not configured")
			}
			return nil
		},
	}
	if s.cfg.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.cfg.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
