package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/quotesmith/internal/cli"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/normalize"
	"github.com/Veraticus/quotesmith/internal/workbook"
)

func (a *app) previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [workbook]",
		Short: "Show how a workbook's rows will be read",
		Long: `Normalize every row of the workbook and print the resulting line items
without calling the language model or Printavo. Rows marked as needing AI
would be sent to the language model during submit.

With --show-config the effective configuration is printed instead, with
credentials masked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runPreview,
	}

	cmd.Flags().String("sheet", "", "sheet name or 1-based index (default: first sheet)")
	cmd.Flags().Bool("show-config", false, "print the effective configuration and exit")
	bindFlag(cmd.Flags(), "sheet", "workbook.sheet")

	return cmd
}

func (a *app) runPreview(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if show, _ := cmd.Flags().GetBool("show-config"); show {
		data, err := yaml.Marshal(a.cfg.Masked())
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = fmt.Fprint(out, string(data))
		return err
	}

	if len(args) == 0 {
		return common.NewUserError("preview needs a workbook", nil)
	}

	book, err := workbook.Open(args[0], workbook.Options{
		Sheet:          a.cfg.Workbook.Sheet,
		HeaderScanRows: a.cfg.Workbook.HeaderScanRows,
	})
	if err != nil {
		return common.NewUserError("cannot read workbook", err)
	}

	var drafts []model.DraftLineItem
	for row, err := range book.Rows() {
		if err != nil {
			return common.NewUserError("cannot read workbook", err)
		}
		drafts = append(drafts, normalize.Normalize(row))
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s %s (sheet %s, header row %d)",
		cli.QuoteIcon, book.Path(), book.Sheet(), book.HeaderRow()))); err != nil {
		return err
	}
	return cli.RenderPreview(out, drafts)
}
