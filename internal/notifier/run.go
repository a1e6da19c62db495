package notifier

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"restaurant-app/internal/notifier/adapter/consumer"
	"restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/xpkg/config"
	"restaurant-app/internal/xpkg/logger"
)

type params struct {
	notifierParams *core.NotifierParams
	configPath     string
	cfg            *config.Config
}

// Execute starts the notifier
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

	n := consumer.NewNotifier(newCtx, context.Background(), params.cfg, params.notifierParams, mylog)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- n.Run()
	}()

	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		if err := <-runErrCh; err != nil {
			mylog.Action("notifier_failed").Error("Notifier stopped with error", err)
		}
		return n.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil {
			mylog.Action("notifier_failed").Error("Notifier failed unexpectedly", err)
			_ = n.Stop(context.Background())
			return err
		}
		mylog.Action("notifier_stopped").Info("Notifier exited normally")
		return n.Stop(context.Background())
	}
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	prefetch := fs.Int("prefetch", 10, "RabbitMQ prefetch count per consumer")

	if err := fs.Parse(args); err != nil {
		return nil, errors.New("cannot parse arguments")
	}

	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}

	return &params{
		notifierParams: &core.NotifierParams{Prefetch: *prefetch},
		configPath:     *configPath,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	if params.notifierParams.Prefetch <= 0 {
		return fmt.Errorf("prefetch must be positive: %d", params.notifierParams.Prefetch)
	}
	return nil
}
