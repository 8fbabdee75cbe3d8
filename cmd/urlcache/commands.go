package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/urlcache/pkg/codec"
	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

func newPutCmd(state *cliState) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "put <identifier> [json]",
		Short: "Store a JSON object or array under an identifier",
		Long: `Store a JSON object or array under an identifier. The value is read from
stdin when it is not given as an argument. A fresh entry is left untouched
unless --force is set.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readValue(cmd, args)
			if err != nil {
				return err
			}
			value, err := codec.Decode(text)
			if err != nil {
				return apperrors.ErrInvalidValue.WithMessage("value must be a JSON object or array").WithInternal(err)
			}

			stack, err := bootstrapRuntime(state.cfg, state.log, false)
			if err != nil {
				return err
			}
			defer stack.Shutdown(state.log)

			write := stack.Cache.Put
			if force {
				write = stack.Cache.Refresh
			}
			outcome, err := write(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite the entry even when it is fresh")
	return cmd
}

func newGetCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Print the value stored under an identifier as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := bootstrapRuntime(state.cfg, state.log, false)
			if err != nil {
				return err
			}
			defer stack.Shutdown(state.log)

			value, found, err := stack.Cache.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return apperrors.ErrNotFound.WithMessage(fmt.Sprintf("%s is not cached", args[0]))
			}

			text, err := codec.Encode(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newInspectCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <identifier>",
		Short: "Show the key, timestamps and freshness of a stored entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := bootstrapRuntime(state.cfg, state.log, false)
			if err != nil {
				return err
			}
			defer stack.Shutdown(state.log)

			info, found, err := stack.Cache.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return apperrors.ErrNotFound.WithMessage(fmt.Sprintf("%s is not cached", args[0]))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "identifier: %s\n", info.Identifier)
			fmt.Fprintf(out, "key:        %s\n", info.Key)
			fmt.Fprintf(out, "created_at: %s\n", info.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "updated_at: %s\n", info.UpdatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "age:        %s\n", info.Age.Truncate(time.Second))
			fmt.Fprintf(out, "stale:      %t\n", info.Stale)
			fmt.Fprintf(out, "size:       %d bytes\n", info.Size)
			return nil
		},
	}
}

func newStatsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored and stale entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := bootstrapRuntime(state.cfg, state.log, false)
			if err != nil {
				return err
			}
			defer stack.Shutdown(state.log)

			stats, err := stack.Cache.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries: %d\n", stats.Entries)
			fmt.Fprintf(out, "stale:   %d\n", stats.Stale)
			fmt.Fprintf(out, "window:  %s\n", stack.Cache.Window())
			return nil
		},
	}
}

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the cache table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := bootstrapRuntime(state.cfg, state.log, false)
			if err != nil {
				return err
			}
			defer stack.Shutdown(state.log)

			fmt.Fprintf(cmd.OutOrStdout(), "cache schema is up to date (%s)\n", state.cfg.Database.ConnectionConfig().Driver)
			return nil
		},
	}
}

func readValue(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read value from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no value given; pass JSON as an argument or on stdin")
	}
	return text, nil
}
