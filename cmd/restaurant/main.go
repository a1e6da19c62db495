package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"restaurant-app/internal/notifier"
	notifiercore "restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/storefront"
	"restaurant-app/internal/storefront/app/core"
	xerrors "restaurant-app/internal/xpkg/errors"
	"restaurant-app/internal/xpkg/logger"
)

func main() {
	mylogger, err := logger.New(logLevel())
	if err != nil {
		log.Fatalf("log error: %v", err)
	}

	mylogger.Action("restaurant_started").Info("Successfully started")
	// Global flags for selecting the service mode
	fs := flag.NewFlagSet("main", flag.ExitOnError)
	mode := fs.String("mode", "", "service to run: storefront | notifier")

	// Only parse the first few args for `--mode`, the rest go to the service
	args := os.Args[1:]
	modeArgs := []string{}
	for i, arg := range args {
		if strings.HasPrefix(arg, "--mode") || strings.HasPrefix(arg, "-mode") {
			modeArgs = args[:i+1]
			if (arg == "--mode" || arg == "-mode") && i+1 < len(args) {
				modeArgs = args[:i+2]
			}
			break
		}
	}
	// parse mode
	if err := fs.Parse(modeArgs); err != nil {
		mylogger.Action("restaurant_failed").Error("Failed to parse flags", err)
		help(fs)
		return
	}

	if *mode == "" {
		mylogger.Action("restaurant_failed").Error("Failed to start restaurant", xerrors.ErrModeFlag)
		help(fs)
		return
	}

	// Remaining args after parsing --mode
	remainingArgs := args[len(modeArgs):]

	ctx := context.Background()
	switch *mode {
	case "storefront", "sf":
		l := mylogger.With("service", "storefront")
		l.Action("storefront_started").Info("Successfully started")
		if err := storefront.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("storefront_failed").Error("Error in storefront", err)
			if !errors.Is(err, core.ErrHelp) {
				log.Fatalf("failed to execute storefront: %s", err)
			}
		}
		l.Action("storefront_completed").Info("Successfully completed")

	case "notifier", "nt":
		l := mylogger.With("service", "notifier")
		l.Action("notifier_started").Info("Successfully started")
		if err := notifier.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("notifier_failed").Error("Error in notifier", err)
			if !errors.Is(err, notifiercore.ErrHelp) {
				log.Fatalf("failed to execute notifier: %s", err)
			}
		}
		l.Action("notifier_completed").Info("Successfully completed")

	default:
		mylogger.Action("restaurant_failed").Error("Failed to start restaurant", xerrors.ErrUnknownService)
		help(fs)
	}
}

func logLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "DEBUG"
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExample:")
	fmt.Println("  ./restaurant --mode=storefront --port=3000 --store=postgres")
	fmt.Println("  ./restaurant --mode=notifier --prefetch=10")
}
