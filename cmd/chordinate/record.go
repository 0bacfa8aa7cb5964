package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/recorder"
	"github.com/dshills/chordinate/internal/input/terminal"
	"github.com/spf13/cobra"
)

const defaultRecordIdle = 2 * time.Second

var (
	recordIdle  time.Duration
	recordName  string
	recordShell string
	recordURL   string
)

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a key sequence from the terminal",
		Long: "record captures key presses until no key has been pressed for --idle.\n" +
			"Escape cancels. With --name and --shell or --url the sequence is saved\n" +
			"as a new binding; otherwise it is printed.",
		Args: cobra.NoArgs,
		RunE: runRecordCmd,
	}
	cmd.Flags().DurationVar(&recordIdle, "idle", defaultRecordIdle, "stop after this long without a key press")
	cmd.Flags().StringVar(&recordName, "name", "", "save the sequence as a binding with this name")
	cmd.Flags().StringVar(&recordShell, "shell", "", "shell command for the saved binding")
	cmd.Flags().StringVar(&recordURL, "url", "", "URL for the saved binding")
	cmd.MarkFlagsMutuallyExclusive("shell", "url")
	return cmd
}

func runRecordCmd(cmd *cobra.Command, _ []string) error {
	var action keymap.Action
	if recordName != "" {
		var err error
		if action, err = actionFromFlags(recordShell, recordURL); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer logger.Close()

	src, err := terminal.NewScreen(logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	if err := src.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	steps, canceled, err := record(cmd.Context(), src, recordIdle)
	src.Fini()
	if err != nil {
		return err
	}
	if canceled {
		return errors.New("recording canceled")
	}
	if steps.IsEmpty() {
		return errors.New("no keys recorded")
	}

	out := cmd.OutOrStdout()
	if recordName == "" {
		_, err := fmt.Fprintf(out, "%s\n%s\n", steps.DisplayText(), steps.String())
		return err
	}

	store, reg, err := loadBindings(cfg)
	if err != nil {
		return err
	}
	b, err := reg.Add(keymap.NewBinding(recordName, steps, action))
	if err != nil {
		return err
	}
	if err := store.Save(reg.Bindings()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "added %s (%s) %s\n", b.Name, b.DisplaySequence(), b.ID)
	return err
}

// record runs a recorder on src until the sequence has been idle for
// idle, Escape is pressed, or the user quits.
func record(ctx context.Context, src *terminal.Source, idle time.Duration) (key.Sequence, bool, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := recorder.New()

	var (
		mu       sync.Mutex
		canceled bool
		timer    *time.Timer
	)
	rec.OnUpdate(func(u recorder.Update) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case u.Canceled:
			canceled = true
			cancel()
			return
		case !u.Recording:
			return
		}

		src.SetStatus(
			"Recording: type the sequence (Esc cancels, stops after "+idle.String()+" idle)",
			"",
			"  "+u.Steps.DisplayText(),
		)
		if len(u.Steps) == 0 {
			return
		}
		if timer == nil {
			timer = time.AfterFunc(idle, cancel)
		} else {
			timer.Reset(idle)
		}
	})
	rec.Start()

	err := src.Run(ctx, terminal.SinkFunc(rec.Intercept))

	mu.Lock()
	if timer != nil {
		timer.Stop()
	}
	wasCanceled := canceled
	mu.Unlock()

	if errors.Is(err, terminal.ErrQuit) {
		rec.Cancel()
		return nil, true, nil
	}
	if wasCanceled {
		return nil, true, nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, false, err
	}
	return rec.Stop(), false, nil
}
