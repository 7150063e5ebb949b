package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-rewards/internal/auth"
	"github.com/noah-isme/toko-rewards/internal/cart"
	"github.com/noah-isme/toko-rewards/internal/catalog"
	"github.com/noah-isme/toko-rewards/internal/checkout"
	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/config"
	"github.com/noah-isme/toko-rewards/internal/db"
	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/favorites"
	"github.com/noah-isme/toko-rewards/internal/game"
	"github.com/noah-isme/toko-rewards/internal/health"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/lock"
	"github.com/noah-isme/toko-rewards/internal/obs"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/ratelimit"
	"github.com/noah-isme/toko-rewards/internal/resilience"
	"github.com/noah-isme/toko-rewards/internal/security"
	"github.com/noah-isme/toko-rewards/internal/tasks"
	"github.com/noah-isme/toko-rewards/internal/uow"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "toko-rewards-api",
			Endpoint:      cfg.Obs.TracingEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "toko-rewards-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis url")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	unit := uow.NewUnitOfWork(pool)
	unit.MustRegister(cart.RepoName, cart.NewPGRepository)
	unit.MustRegister(wallet.RepoName, wallet.NewPGRepository)
	unit.MustRegister(order.RepoName, order.NewPGRepository)
	unit.MustRegister(events.RepoName, events.NewPGStore)

	mirror := &localstate.Store{R: redisClient, MaxOrders: cfg.LocalStateOrders}
	locker := lock.Locker{R: redisClient}
	walletRepo := &wallet.PGRepository{DB: pool}
	eventStore := &events.PGStore{DB: pool}

	bus := &events.Bus{
		Store: eventStore,
		Scheduler: tasks.Scheduler{
			Client:   taskClient,
			MaxRetry: cfg.TaskMaxRetry,
		},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: obs.Component(logger, "events")}},
	}

	catalogHTTP := resilience.HTTPClient{
		Client:      resilience.NewTracedClient(cfg.OutboundTimeout),
		Breaker:     resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).WithTarget("catalog").WithLogger(logger),
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      float64(cfg.RetryJitterPercent) / 100,
		Timeout:     cfg.OutboundTimeout,
		Target:      "catalog",
		Logger:      obs.Component(logger, "outbound"),
	}
	catalogClient := catalog.NewClient(cfg.CatalogAPIBaseURL, catalogHTTP, catalog.NewCache(redisClient, cfg.CatalogCacheTTL), obs.Component(logger, "catalog"))

	walletSvc := &wallet.Service{Repo: walletRepo, UOW: unit, Mirror: mirror, Logger: obs.Component(logger, "wallet")}
	cartSvc := &cart.Service{Repo: &cart.PGRepository{DB: pool}, Catalog: catalogClient}
	orderSvc := &order.Service{Repo: &order.PGRepository{DB: pool}}
	favoritesSvc := &favorites.Service{Repo: &favorites.PGRepository{DB: pool}, Mirror: mirror, Logger: obs.Component(logger, "favorites")}
	checkoutSvc := &checkout.Service{
		UOW:     unit,
		Guard:   locker,
		LockTTL: cfg.CheckoutLockTTL,
		Bus:     bus,
		Mirror:  mirror,
		Logger:  obs.Component(logger, "checkout"),
	}

	ladder, err := game.ParseLadder(cfg.GamePrizeLadder)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse game prize ladder")
	}
	gameSvc := &game.Service{
		Store:  game.RedisStore{R: redisClient, TTL: cfg.GameSessionTTL},
		Wallet: walletSvc,
		Events: bus,
		Lock:   locker,
		Rules: game.Rules{
			Ladder:       ladder,
			WinCooldown:  cfg.GameWinCooldown,
			LossCooldown: cfg.GameLossCooldown,
		},
		Logger: obs.Component(logger, "game"),
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure token verifier")
	}
	authMiddleware := auth.Middleware{Tokens: verifier, AccessCookie: cfg.AccessCookieName}

	limiter, err := newRateLimiter(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: ratelimit.UserOrIPKey, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate_limit_unavailable") },
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Scope: "checkout", Key: ratelimit.UserOrIPKey, Window: cfg.RateLimitWindow, Max: cfg.CheckoutRateLimitMax},
		OnError: rateLimit.OnError,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	csrf := security.CSRF{Secure: cfg.AppEnv == "production"}

	cartHandler := &cart.Handler{Svc: cartSvc}
	walletHandler := &wallet.Handler{Svc: walletSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	orderHandler := &order.Handler{Svc: orderSvc}
	favoritesHandler := &favorites.Handler{Svc: favoritesSvc}
	gameHandler := &game.Handler{Svc: gameSvc}
	catalogHandler := &catalog.Handler{Source: catalogClient}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: []string{"/health"}}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecureHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if user := os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"); user != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{DB: pool, Redis: redisClient},
		DBTimeout:    cfg.Obs.HealthDBTimeout,
		RedisTimeout: cfg.Obs.HealthRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(authMiddleware.Authenticate)
		v.Use(rateLimit.Middleware)

		v.Get("/csrf", csrf.Issue)
		v.Get("/products/{productId}", catalogHandler.Get)
		v.Get("/favorites/{productId}", favoritesHandler.Check)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Use(csrf.Middleware)

			authR.Route("/cart", func(c chi.Router) {
				c.Get("/", cartHandler.Get)
				c.Delete("/", cartHandler.Clear)
				c.With(idem.Middleware).Post("/items", cartHandler.AddItem)
				c.With(idem.Middleware).Post("/merge", cartHandler.MergeGuest)
				c.Patch("/items/{itemId}", cartHandler.UpdateItem)
				c.Delete("/items/{itemId}", cartHandler.RemoveItem)
			})

			authR.Get("/wallet", walletHandler.Get)

			authR.Post("/checkout/quote", checkoutHandler.Quote)
			authR.With(checkoutLimit.Middleware, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)

			authR.Get("/favorites", favoritesHandler.List)
			authR.Post("/favorites/toggle", favoritesHandler.Toggle)

			authR.Route("/game", func(g chi.Router) {
				g.Get("/", gameHandler.Get)
				g.Post("/start", gameHandler.Start)
				g.Post("/answer", gameHandler.Answer)
				g.Post("/withdraw", gameHandler.Withdraw)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("server draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newRateLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Allower, error) {
	switch cfg.RateLimitDriver {
	case "off":
		return nil, nil
	case "ulule":
		return ratelimit.NewFixedWindow(client, "ratelimit:fixed")
	default:
		return ratelimit.SlidingWindow{Client: client, Prefix: "ratelimit:sliding:"}, nil
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
