package storefront

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"restaurant-app/internal/storefront/api/http"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/xpkg/config"
	"restaurant-app/internal/xpkg/logger"
)

type params struct {
	storefrontParams *core.StorefrontParams
	configPath       string
	cfg              *config.Config
}

// Execute starts the storefront service
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	params, err := parseParams(args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}
	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	server := http.NewServer(newCtx, context.Background(), params.cfg, params.storefrontParams, mylog)

	// Run server in goroutine
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	// Wait for signal or server crash
	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		return server.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Action("storefront_failed").Error("Server failed unexpectedly", err)
			_ = server.Stop(context.Background())
			return err
		}
		mylog.Action("server_stopped").Info("Server exited normally")
		return server.Stop(context.Background())
	}
}

// Helper functions to validate cli params

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", 3000, "Port to run the storefront")
	store := fs.String("store", core.StorePostgres, "document store: postgres | memory")

	if err := fs.Parse(args); err != nil {
		// User message
		return nil, errors.New("cannot parse arguments")
	}

	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}

	return &params{
		storefrontParams: &core.StorefrontParams{
			Port:  *port,
			Store: *store,
		},
		configPath: *configPath,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	sp := params.storefrontParams
	if sp.Port <= 0 || sp.Port >= 65536 {
		return fmt.Errorf("port must be in [0: 65,535]: %d", sp.Port)
	}

	switch sp.Store {
	case core.StorePostgres, core.StoreMemory:
	default:
		return fmt.Errorf("unknown store %q, use postgres or memory", sp.Store)
	}

	if cfg.Tracking.TickInterval <= 0 || cfg.Tracking.PrepDuration <= 0 {
		return fmt.Errorf("tracking intervals must be positive: tick %s, preparation %s",
			cfg.Tracking.TickInterval, cfg.Tracking.PrepDuration)
	}

	return nil
}
