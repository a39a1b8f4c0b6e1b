package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/placesauth/internal/config"
	"github.com/example/placesauth/internal/logging"
	"github.com/example/placesauth/internal/places"
	"github.com/gorilla/mux"
)

type App struct {
	Config       *cfg.Config
	DB           DB
	Log          logging.Logger
	Auth         *AuthService
	Sessions     *SessionAuthenticator
	Restaurants  *RestaurantService
	Transactions *TransactionLogger
}

// NewApp wires the services over db and finder.
func NewApp(c *cfg.Config, db DB, finder PlaceFinder, log logging.Logger) *App {
	tokens := NewTokenIssuer([]byte(c.JwtSecret), c.TokenTTL)
	ledger := NewRevocationLedger(db)
	txlog := NewTransactionLogger(db, log)
	return &App{
		Config:       c,
		DB:           db,
		Log:          log,
		Auth:         NewAuthService(db, ledger, NewPasswordHasher(PasswordCost), tokens, txlog, log),
		Sessions:     NewSessionAuthenticator(ledger, tokens),
		Restaurants:  NewRestaurantService(finder, txlog, log),
		Transactions: txlog,
	}
}

// Router builds the HTTP routes.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(a.Recover)
	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	r.HandleFunc("/health", a.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", a.HandleReady).Methods(http.MethodGet)

	users := r.PathPrefix("/api/users").Subrouter()
	users.HandleFunc("/register", a.HandleRegister).Methods(http.MethodPost, http.MethodOptions)
	users.HandleFunc("/login", a.HandleLogin).Methods(http.MethodPost, http.MethodOptions)
	users.HandleFunc("/introspect", a.HandleTokenIntrospect).Methods(http.MethodPost, http.MethodOptions)

	protected := users.NewRoute().Subrouter()
	protected.Use(RequireSession(a.Sessions, a.Log))
	protected.HandleFunc("/restaurants", a.HandleRestaurants).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/transactions", a.HandleTransactions).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/logout", a.HandleLogout).Methods(http.MethodPost, http.MethodOptions)

	return r
}

func openDB(ctx context.Context, c *cfg.Config, log logging.Logger) (DB, error) {
	switch c.DBAdapter {
	case "sqlite":
		return NewSQLiteDB(ctx, c.SQLiteFile)
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres config: %w", err)
		}
		log.Info(ctx, "applying database migrations")
		if err := ApplyMigrations(ctx, log, dsn); err != nil {
			return nil, err
		}
		return NewPostgresDB(ctx, dsn)
	case "memory":
		log.Warn(ctx, "using in-memory database (not recommended for production)")
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	c, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stdout, c.LogLevel, c.LogFormat).With("service", "placesauth")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, c, log)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info(ctx, "database ready", "adapter", c.DBAdapter)

	finder := places.NewClient(places.Config{
		APIKey:        c.HereAPIKey,
		GeocodeURL:    c.HereGeocodeURL,
		DiscoverURL:   c.HereDiscoverURL,
		Timeout:       c.HereTimeout,
		RatePerSecond: c.HereRatePerSecond,
	})
	app := NewApp(c, db, finder, log)

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", "port", c.Port, "env", c.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info(shutdownCtx, "server exited properly")
	return nil
}
