package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dshills/chordinate/internal/history"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

var historyLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently triggered bindings and their results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.HistoryPath == "" {
				return errors.New("history is disabled (storage.history_path is empty)")
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer logger.Close()

			store, err := history.Open(cfg.Storage.HistoryPath, logger.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no history")
				return err
			}
			return historyTable(entries).write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", defaultHistoryLimit, "number of entries to show")
	return cmd
}

func historyTable(entries []history.Entry) *table {
	t := newTable("TIME", "KIND", "NAME", "SEQUENCE", "OUTCOME", "DETAIL")
	for _, e := range entries {
		detail := e.Payload
		switch {
		case e.Error != "":
			detail = e.Error
		case e.Kind == history.KindDispatch:
			detail = "exit " + strconv.Itoa(e.ExitCode) + " in " + (time.Duration(e.DurationMs) * time.Millisecond).String()
		}
		t.add(
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Kind),
			e.BindingName,
			e.Sequence,
			e.Outcome,
			truncate(detail, maxActionWidth),
		)
	}
	return t
}
