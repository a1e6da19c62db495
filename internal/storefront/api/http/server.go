package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/api/http/handle"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/xpkg/broker"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/config"
	"restaurant-app/internal/xpkg/db"
	"restaurant-app/internal/xpkg/db/migrations"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/telemetry"

	brokermessage "restaurant-app/internal/storefront/adapter/broker_message"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var ErrServerClosed = errors.New("Server closed")

type Server struct {
	mux     *http.ServeMux
	cfg     *config.Config
	srv     *http.Server
	params  *core.StorefrontParams
	mylog   logger.Logger
	ctx     context.Context
	appCtx  context.Context
	clock   clock.Clock
	mu      sync.Mutex
	handler http.Handler

	db        *db.DB
	pgStore   *docstore.Postgres
	store     core.IDocStore
	creds     identity.CredentialRepo
	rdb       *redis.Client
	mb        *broker.RabbitMQ
	publisher core.IPublisher
	id        core.IIdentity
	carts     *services.CartManager

	// streams ends open event streams once shutdown begins.
	streams     context.Context
	stopStreams context.CancelFunc

	shutdownTelemetry func(context.Context) error
}

func NewServer(ctx, appCtx context.Context, cfg *config.Config, params *core.StorefrontParams, mylog logger.Logger) *Server {
	streams, stopStreams := context.WithCancel(context.Background())
	return &Server{
		ctx:         ctx,
		appCtx:      appCtx,
		cfg:         cfg,
		params:      params,
		mylog:       mylog,
		clock:       clock.NewSystem(),
		mux:         http.NewServeMux(),
		streams:     streams,
		stopStreams: stopStreams,
	}
}

// Run connects every gateway, initializes routes and starts listening.
// It returns when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeStore(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to initialize document store", err)
		return err
	}
	mylog.Action("db_connected").Info("Document store ready", "store", s.params.Store)

	if err := s.initializeRedis(); err != nil {
		mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
		return err
	}
	mylog.Action("redis_connected").Info("Successful redis connection")

	if err := s.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	if err := s.initializeTelemetry(); err != nil {
		mylog.Action("telemetry_failed").Error("Failed to set up tracing", err)
		return err
	}

	s.initializeIdentity()
	s.Configure()

	s.mu.Lock()
	s.srv = s.newHTTPServer(fmt.Sprintf(":%d", s.params.Port))
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.params.Port, "store", s.params.Store)
	mylog.Info("server is running")

	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
// Every resource is released even when the HTTP server fails to drain.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	var errs []error
	s.stopStreams()

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if s.carts != nil {
		s.carts.Close()
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			errs = append(errs, fmt.Errorf("mb close: %w", err))
		} else {
			s.mylog.Action("mb_closed").Info("Message broker closed")
		}
	}

	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.mylog.Action("redis_close_failed").Error("Failed to close redis", err)
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			s.mylog.Action("redis_closed").Info("Redis closed")
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			errs = append(errs, fmt.Errorf("db close: %w", err))
		} else {
			s.mylog.Action("db_closed").Info("Database closed")
		}
	}

	if s.shutdownTelemetry != nil {
		if err := s.shutdownTelemetry(ctx); err != nil {
			s.mylog.Action("telemetry_close_failed").Error("Failed to flush traces", err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: core.WaitTime * time.Second,
	}
	srv.RegisterOnShutdown(s.stopStreams)
	return srv
}

// streaming ends the request context of a long-lived response when the
// server starts shutting down. Shutdown itself never cancels it.
func (s *Server) streaming(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(s.streams, cancel)
		defer stop()

		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// startHTTPServer serves requests and, with Postgres, relays change
// notifications to open subscriptions.
func (s *Server) startHTTPServer() error {
	g, gctx := errgroup.WithContext(s.ctx)

	g.Go(func() error {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.pgStore != nil {
		g.Go(func() error {
			return s.pgStore.Listen(gctx)
		})
	}

	g.Go(func() error {
		return s.carts.Run(gctx, s.cfg.Auth.SessionTTL)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) initializeStore() error {
	if s.params.Store == core.StoreMemory {
		s.store = docstore.NewMemory(s.clock)
		s.creds = identity.NewMemoryCredentials()
		return nil
	}

	database, err := db.Start(s.appCtx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = database

	if err := migrations.Apply(s.appCtx, database.Pool()); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	s.pgStore = docstore.NewPostgres(database.Pool(), s.clock)
	s.store = s.pgStore
	s.creds = identity.NewPostgresCredentials(database.Pool())
	return nil
}

func (s *Server) initializeRedis() error {
	rdb, err := identity.DialRedis(s.appCtx, s.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.rdb = rdb
	return nil
}

func (s *Server) initializeRabbitMQ() error {
	mb, err := broker.New(s.appCtx, *s.cfg.RMQ, s.mylog, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	s.publisher = brokermessage.NewPublisher(mb, s.mylog)
	return nil
}

func (s *Server) initializeTelemetry() error {
	shutdown, err := telemetry.Setup(s.cfg.Telemetry, os.Stdout)
	if err != nil {
		return err
	}
	s.shutdownTelemetry = shutdown
	return nil
}

func (s *Server) initializeIdentity() {
	s.id = identity.NewService(s.creds, identity.NewRedisSessions(s.rdb), s.publisher, identity.Options{
		AdminEmail: s.cfg.Auth.AdminEmail,
		PublicURL:  s.cfg.Auth.PublicURL,
		SessionTTL: s.cfg.Auth.SessionTTL,
		TokenTTL:   s.cfg.Auth.TokenTTL,
		Clock:      s.clock,
	}, s.mylog)
}

func (s *Server) checks() map[string]handle.Check {
	checks := map[string]handle.Check{}
	if s.db != nil {
		checks["database"] = func(context.Context) error { return s.db.IsAlive() }
	}
	if s.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
	}
	if s.mb != nil {
		checks["broker"] = func(context.Context) error { return s.mb.IsAlive() }
	}
	return checks
}

// Configure builds the services over the connected gateways and registers
// the routes.
func (s *Server) Configure() {
	tracking := s.cfg.Tracking

	menuService := services.NewMenuService(s.store, s.mylog)
	profileService := services.NewProfileService(s.store, s.mylog)
	orderService := services.NewOrderService(s.store, s.mylog)
	checkoutService := services.NewCheckoutService(s.store, s.publisher, s.clock, s.mylog)
	monitor := services.NewTrackingMonitor(s.store, s.clock, tracking.TickInterval, tracking.PrepDuration, s.mylog)
	s.carts = services.NewCartManager(s.appCtx, s.store, s.id, s.clock, s.mylog)

	auth := handle.NewAuth(s.id, s.mylog)
	healthHandler := handle.NewHealthHandler(s.checks())
	menuHandler := handle.NewMenuHandler(menuService, s.mylog)
	authHandler := handle.NewAuthHandler(s.id, profileService, s.mylog)
	profileHandler := handle.NewProfileHandler(profileService, s.mylog)
	cartHandler := handle.NewCartHandler(s.carts, menuService, s.mylog)
	checkoutHandler := handle.NewCheckoutHandler(s.carts, checkoutService, s.mylog)
	orderHandler := handle.NewOrderHandler(s.id, orderService, monitor, s.mylog)
	adminHandler := handle.NewAdminHandler(orderService, menuService, s.mylog)

	// Register routes
	s.mux.Handle("GET /health", healthHandler.Get())
	s.mux.Handle("GET /menu", menuHandler.List())

	s.mux.Handle("POST /auth/signup", authHandler.SignUp())
	s.mux.Handle("POST /auth/login", authHandler.Login())
	s.mux.Handle("POST /auth/login/{provider}", authHandler.LoginWithProvider())
	s.mux.Handle("POST /auth/logout", auth.User(authHandler.Logout()))
	s.mux.Handle("POST /auth/password-reset", authHandler.PasswordReset())
	s.mux.Handle("POST /auth/password-reset/confirm", authHandler.PasswordResetConfirm())
	s.mux.Handle("POST /auth/verification", auth.Optional(authHandler.Verification()))
	s.mux.Handle("POST /auth/verify", authHandler.Verify())

	s.mux.Handle("GET /profile", auth.User(profileHandler.Get()))
	s.mux.Handle("PUT /profile", auth.User(profileHandler.Update()))

	s.mux.Handle("GET /cart", auth.User(cartHandler.Get()))
	s.mux.Handle("DELETE /cart", auth.User(cartHandler.Clear()))
	s.mux.Handle("POST /cart/items", auth.User(cartHandler.AddItem()))
	s.mux.Handle("POST /cart/items/{name}/increase", auth.User(cartHandler.Increase()))
	s.mux.Handle("POST /cart/items/{name}/decrease", auth.User(cartHandler.Decrease()))
	s.mux.Handle("DELETE /cart/items/{name}", auth.User(cartHandler.Remove()))
	s.mux.Handle("POST /checkout", auth.User(checkoutHandler.PlaceOrder()))

	s.mux.Handle("GET /orders", auth.User(orderHandler.History()))
	s.mux.Handle("GET /orders/{id}", auth.User(orderHandler.Get()))
	s.mux.Handle("GET /orders/{id}/tracking", s.streaming(auth.User(orderHandler.Track())))

	s.mux.Handle("GET /admin/orders", auth.Admin(adminHandler.Orders()))
	s.mux.Handle("GET /admin/orders/stream", s.streaming(auth.Admin(adminHandler.OrdersStream())))
	s.mux.Handle("PATCH /admin/orders/{id}/status", auth.Admin(adminHandler.SetStatus()))
	s.mux.Handle("POST /admin/menu/sections", auth.Admin(adminHandler.AddSection()))
	s.mux.Handle("DELETE /admin/menu/sections/{id}", auth.Admin(adminHandler.RemoveSection()))
	s.mux.Handle("POST /admin/menu/sections/{id}/items", auth.Admin(adminHandler.AddItem()))
	s.mux.Handle("DELETE /admin/menu/sections/{id}/items/{index}", auth.Admin(adminHandler.RemoveItem()))

	s.handler = s.mux
	if s.cfg.Telemetry != nil && s.cfg.Telemetry.Enabled {
		s.handler = telemetry.Middleware(s.mux, "storefront")
	}
}
