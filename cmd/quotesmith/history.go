package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/quotesmith/internal/cli"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/service"
	"github.com/Veraticus/quotesmith/internal/storage"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE:  a.runHistoryList,
	}
	cmd.Flags().IntP("limit", "n", storage.DefaultListLimit, "number of runs to list")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runHistoryShow,
	}
	show.Flags().BoolP("verbose", "v", false, "list every row in the report")
	cmd.AddCommand(show)

	return cmd
}

func (a *app) withStore(cmd *cobra.Command, fn func(service.RunStore) error) error {
	store, err := a.openStore(cmd.Context(), a.cfg)
	if err != nil {
		return common.NewUserError("cannot open run history", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("Failed to close history database", "error", err)
		}
	}()
	return fn(store)
}

func (a *app) runHistoryList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return common.NewUserError(fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}

	return a.withStore(cmd, func(store service.RunStore) error {
		runs, err := store.ListRuns(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		return cli.RenderHistory(cmd.OutOrStdout(), runs)
	})
}

func (a *app) runHistoryShow(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	return a.withStore(cmd, func(store service.RunStore) error {
		report, err := store.GetRun(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrRunNotFound) || errors.Is(err, storage.ErrAmbiguousRunID) {
			return common.NewUserError(fmt.Sprintf("cannot show run %s", args[0]), err)
		}
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		return cli.RenderReport(cmd.OutOrStdout(), report, verbose)
	})
}
