package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dshills/chordinate/internal/app"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/terminal"
	"github.com/spf13/cobra"
)

var runAPI bool

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect chords typed in this terminal",
		Long: "run reads key presses from the terminal and triggers matching bindings.\n" +
			"Press Ctrl+C to quit.",
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}
	cmd.Flags().BoolVar(&runAPI, "api", false, "also serve the HTTP API")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer logger.Close()

	application, err := app.New(app.Options{Config: cfg, Logger: logger, EnableAPI: runAPI})
	if err != nil {
		return err
	}

	src, err := terminal.NewScreen(logger.Logger)
	if err != nil {
		_ = application.Shutdown()
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	if err := src.Init(); err != nil {
		_ = application.Shutdown()
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer src.Fini()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	last := "none"
	redraw := func() {
		mu.Lock()
		defer mu.Unlock()
		lines := []string{
			"chordinate: watching for chords (Ctrl+C quits)",
			fmt.Sprintf("bindings: %d   last triggered: %s", application.Registry().Len(), last),
		}
		if srv := application.API(); srv != nil && srv.Addr() != "" {
			lines = append(lines, "api: http://"+srv.Addr())
		}
		src.SetStatus(lines...)
	}
	cancelTrigger := application.Engine().OnTrigger(func(b keymap.Binding) {
		mu.Lock()
		last = b.Name + "  " + b.DisplaySequence()
		mu.Unlock()
		redraw()
	})
	defer cancelTrigger()
	sub := application.Registry().OnChange(func([]keymap.Binding) { redraw() })
	defer sub.Cancel()

	errc := make(chan error, 1)
	go func() { errc <- application.Run(ctx) }()
	redraw()

	srcErr := src.Run(ctx, application)
	cancel()
	runErr := <-errc

	if errors.Is(srcErr, terminal.ErrQuit) || errors.Is(srcErr, context.Canceled) {
		srcErr = nil
	}
	return errors.Join(srcErr, runErr)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API without reading the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer logger.Close()

			application, err := app.New(app.Options{Config: cfg, Logger: logger, EnableAPI: true})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
}
