// Package main provides the qichat CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lin/qichat/internal/config"
	"github.com/lin/qichat/internal/history"
	"github.com/lin/qichat/internal/persist"
	"github.com/lin/qichat/internal/provider"
	"github.com/lin/qichat/internal/render"
	qruntime "github.com/lin/qichat/internal/runtime"
	"github.com/lin/qichat/internal/settings"
	"github.com/lin/qichat/internal/startup"
	"github.com/lin/qichat/internal/state"
	"github.com/lin/qichat/internal/tui"
	"github.com/lin/qichat/pkg/llm"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qichat [payload]",
		Short: "qichat - AI chat in the terminal",
		Long: `qichat: an AI chat client with conversation history.

Usage modes:
  qichat                   Open the chat shell (resumes your last conversation)
  qichat <file>            Open a new conversation around a file
  qichat <url>             Open a new conversation around a webpage
  qichat "<text>"          Open a new conversation prefilled with text

Use 'qichat history' to browse saved conversations.
Use 'qichat send' for a one-shot message without the shell.`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runShell(args)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")

	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// runShell opens the interactive chat shell. Cobra has already stripped the
// flags, so only positional arguments reach payload classification.
func runShell(args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: the chat shell needs a terminal; use 'qichat send' in pipes")
		os.Exit(1)
	}

	app, shutdown, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	shutdown.ListenForSignals()

	runErr := tui.Run(app, payloadArgv(args))

	shutdown.Shutdown()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// payloadArgv rebuilds an argv-shaped slice for the payload parser, which
// skips the program name.
func payloadArgv(args []string) []string {
	return append([]string{"qichat"}, args...)
}

// buildApp wires the stores, lifecycle managers and completion provider.
// The returned shutdown manager owns resource teardown; run it after the
// shell exits.
func buildApp() (*tui.App, *qruntime.ShutdownManager, error) {
	env := config.GetEnv()
	paths := config.GetPaths()

	if err := config.EnsureDir(paths.Home); err != nil {
		return nil, nil, fmt.Errorf("create home dir: %w", err)
	}

	store, err := history.NewStore(paths.History)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}

	set, err := settings.Open(paths.SettingsDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open settings: %w", err)
	}

	shutdown := qruntime.NewShutdownManager(10 * time.Second)
	shutdown.Register("settings", func(ctx context.Context) error {
		return set.Close()
	})

	prov, err := buildProvider(env, set)
	if err != nil {
		set.Close()
		return nil, nil, err
	}

	states := state.NewManager()
	pm := persist.NewManager(store)

	app := &tui.App{
		States:   states,
		Startup:  startup.NewManager(states, pm, store, set, env.NoResume),
		Persist:  pm,
		Store:    store,
		Settings: set,
		Provider: prov,
	}

	// Registered last so it runs first: the open chat is flushed before the
	// stores underneath it close.
	shutdown.Register("chats", func(ctx context.Context) error {
		app.FlushActive(ctx)
		return nil
	})
	return app, shutdown, nil
}

// buildProvider picks the completion backend: the OpenAI-compatible API
// when a key is configured, otherwise the offline echo provider so the
// shell still works without credentials.
func buildProvider(env *config.Env, set *settings.Store) (llm.Provider, error) {
	model := env.Model
	if os.Getenv("QICHAT_MODEL") == "" {
		if stored, err := set.PreferredModel(context.Background()); err == nil && stored != "" {
			model = stored
		}
	}

	if env.APIKey == "" {
		return provider.NewScripted(), nil
	}

	return provider.NewOpenAI(provider.Config{
		APIKey:  env.APIKey,
		BaseURL: env.BaseURL,
		Model:   model,
	})
}

func modelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model [name]",
		Short: "Show or set the preferred completion model",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			paths := config.GetPaths()
			if err := config.EnsureDir(paths.Home); err != nil {
				exitOnError(err)
			}
			set, err := settings.Open(paths.SettingsDB)
			if err != nil {
				exitOnError(err)
			}
			defer set.Close()

			ctx := context.Background()
			if len(args) == 0 {
				stored, err := set.PreferredModel(ctx)
				if err != nil {
					exitOnError(err)
				}
				if stored == "" {
					stored = config.GetEnv().Model + " (default)"
				}
				render.Stdout().Println("%s", stored)
				return
			}

			if err := set.SetPreferredModel(ctx, args[0]); err != nil {
				exitOnError(err)
			}
			render.Stdout().Println("✓ Preferred model: %s", args[0])
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show qichat version",
		Run: func(cmd *cobra.Command, args []string) {
			render.Stdout().Println("qichat version %s", version)
		},
	}
}

// openStore opens the conversation store for the read-side commands.
func openStore() *history.Store {
	paths := config.GetPaths()
	store, err := history.NewStore(paths.History)
	if err != nil {
		exitOnError(err)
	}
	return store
}

// exitOnError prints the error and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
