package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/provisor/internal/buildinfo"
	"github.com/tsukumogami/provisor/internal/config"
	"github.com/tsukumogami/provisor/internal/engine"
	"github.com/tsukumogami/provisor/internal/log"
	"github.com/tsukumogami/provisor/internal/planstate"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; commands pass it to every
// blocking engine call.
var globalCtx context.Context
var globalCancel context.CancelFunc

var eng *engine.Engine

var rootCmd = &cobra.Command{
	Use:   "provisor",
	Short: "A declarative control plane for provisioning CLI tools and runtimes",
	Long: `provisor installs, updates and removes development tools and runtimes
from declarative recipes, producing deterministic install plans that
can be previewed, resumed after a failure, and re-run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")

	rootCmd.PersistentPreRun = initLoggerAndEngine
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(uninstallCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(exitCodeFor(err))
	}
}

// initLoggerAndEngine runs once per invocation, before any subcommand's
// Run: it configures the global logger from the verbosity flags, then
// wires the Engine against it so the step executor's streamed output
// respects --quiet/--verbose/--debug.
func initLoggerAndEngine(cmd *cobra.Command, args []string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: determineLogLevel()})
	logger := log.New(handler)
	log.SetDefault(logger)

	cfg, err := config.DefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		exitWithCode(ExitGeneral)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare %s: %v\n", cfg.HomeDir, err)
		exitWithCode(ExitGeneral)
	}

	store, err := planstate.New(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open plan state store: %v\n", err)
		exitWithCode(ExitGeneral)
	}

	eng = &engine.Engine{
		Recipes:     recipe.New(cfg.RecipesDir, ""),
		Executor:    stepexec.New(logger, terminalPasswordProvider),
		Store:       store,
		Logger:      logger,
		Workers:     cfg.WorkerBudget,
		PlanTimeout: cfg.PlanTimeout,
	}
}

func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
