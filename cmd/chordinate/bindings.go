package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/chordinate/internal/config"
	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const maxActionWidth = 48

var (
	listJSON bool

	addKeys  string
	addShell string
	addURL   string

	importReplace bool
)

func newBindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bindings",
		Aliases: []string{"b"},
		Short:   "Manage stored bindings",
	}
	cmd.AddCommand(newBindingsListCmd())
	cmd.AddCommand(newBindingsAddCmd())
	cmd.AddCommand(newBindingsRemoveCmd())
	cmd.AddCommand(newBindingsImportCmd())
	cmd.AddCommand(newBindingsExportCmd())
	return cmd
}

// openBindings loads the configured bindings file into a registry.
func openBindings() (*keymap.FileStore, *keymap.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return loadBindings(cfg)
}

func loadBindings(cfg *config.Config) (*keymap.FileStore, *keymap.Registry, error) {
	store := keymap.NewFileStore(cfg.Storage.BindingsPath)
	bindings, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	reg, err := keymap.NewRegistry(bindings...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", store.Path(), err)
	}
	return store, reg, nil
}

func newBindingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bindings in match order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, reg, err := openBindings()
			if err != nil {
				return err
			}
			bindings := reg.Bindings()

			if listJSON {
				data, err := keymap.Encode(bindings)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if len(bindings) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no bindings")
				return err
			}
			return bindingsTable(bindings).write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&listJSON, "json", false, "print the stored JSON")
	return cmd
}

func bindingsTable(bindings []keymap.Binding) *table {
	t := newTable("NAME", "SEQUENCE", "TYPE", "ACTION", "ID")
	for _, b := range bindings {
		seq := b.DisplaySequence()
		if seq == "" {
			seq = "(none)"
		}
		t.add(b.Name, seq, b.Action.Type.Title(), truncate(b.Action.Payload, maxActionWidth), b.ID.String())
	}
	return t
}

func newBindingsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a binding",
		Example: `  chordinate bindings add terminal --keys "Cmd+K Cmd+T" --shell "open -a Terminal"
  chordinate bindings add docs --keys "Ctrl+D Ctrl+D" --url https://pkg.go.dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := key.ParseSequence(addKeys)
			if err != nil {
				return fmt.Errorf("--keys: %w", err)
			}
			action, err := actionFromFlags(addShell, addURL)
			if err != nil {
				return err
			}

			store, reg, err := openBindings()
			if err != nil {
				return err
			}
			b, err := reg.Add(keymap.NewBinding(args[0], steps, action))
			if err != nil {
				return err
			}
			if err := store.Save(reg.Bindings()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) %s\n", b.Name, b.DisplaySequence(), b.ID)
			return err
		},
	}
	cmd.Flags().StringVarP(&addKeys, "keys", "k", "", `key sequence, e.g. "Cmd+K Cmd+C"`)
	cmd.Flags().StringVar(&addShell, "shell", "", "shell command to run")
	cmd.Flags().StringVar(&addURL, "url", "", "URL to open")
	_ = cmd.MarkFlagRequired("keys")
	cmd.MarkFlagsMutuallyExclusive("shell", "url")
	cmd.MarkFlagsOneRequired("shell", "url")
	return cmd
}

func actionFromFlags(shell, url string) (keymap.Action, error) {
	switch {
	case shell != "" && url != "":
		return keymap.Action{}, errors.New("use either --shell or --url")
	case shell != "":
		return keymap.ShellCommand(shell), nil
	case url != "":
		return keymap.OpenURL(url), nil
	}
	return keymap.Action{}, errors.New("one of --shell or --url is required")
}

func newBindingsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID|NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a binding by ID or name",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, err := openBindings()
			if err != nil {
				return err
			}
			b, err := findBinding(reg.Bindings(), args[0])
			if err != nil {
				return err
			}
			if err := reg.Remove(b.ID); err != nil {
				return err
			}
			if err := store.Save(reg.Bindings()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", b.Name)
			return err
		},
	}
}

// findBinding resolves an ID, or a name shared by exactly one binding.
func findBinding(bindings []keymap.Binding, ref string) (keymap.Binding, error) {
	if id, err := uuid.Parse(ref); err == nil {
		for _, b := range bindings {
			if b.ID == id {
				return b, nil
			}
		}
		return keymap.Binding{}, fmt.Errorf("%w: %s", keymap.ErrNotFound, ref)
	}

	var found []keymap.Binding
	for _, b := range bindings {
		if strings.EqualFold(b.Name, ref) {
			found = append(found, b)
		}
	}
	switch len(found) {
	case 0:
		return keymap.Binding{}, fmt.Errorf("%w: %s", keymap.ErrNotFound, ref)
	case 1:
		return found[0], nil
	}
	return keymap.Binding{}, fmt.Errorf("%d bindings are named %q; use the ID", len(found), ref)
}

func newBindingsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import bindings from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := keymap.LoadFile(args[0])
			if err != nil {
				return err
			}
			store, reg, err := openBindings()
			if err != nil {
				return err
			}

			if importReplace {
				err = reg.Replace(imported)
			} else {
				err = reg.Replace(append(reg.Bindings(), imported...))
			}
			if err != nil {
				return err
			}
			if err := store.Save(reg.Bindings()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d bindings (%d total)\n", len(imported), reg.Len())
			return err
		},
	}
	cmd.Flags().BoolVar(&importReplace, "replace", false, "replace existing bindings instead of appending")
	return cmd
}

func newBindingsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export bindings to a JSON or YAML file (by extension)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := openBindings()
			if err != nil {
				return err
			}
			if err := keymap.ExportFile(args[0], reg.Bindings()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d bindings to %s\n", reg.Len(), args[0])
			return err
		},
	}
}
