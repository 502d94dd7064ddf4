package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/quotesmith/internal/assembly"
	"github.com/Veraticus/quotesmith/internal/cli"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/config"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/pipeline"
	"github.com/Veraticus/quotesmith/internal/service"
	"github.com/Veraticus/quotesmith/internal/workbook"
)

// persistTimeout bounds history and export writes after a canceled run.
const persistTimeout = 30 * time.Second

func (a *app) submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <workbook>",
		Short: "Submit an order spreadsheet as a Printavo quote",
		Long: `Read every row of the workbook, resolve ambiguous rows with the language
model, and create one Printavo quote holding a line item per row.

Rows that cannot be resolved are skipped and listed in the report. Use
--dry-run to see what would be submitted without contacting Printavo.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runSubmit,
	}

	flags := cmd.Flags()
	flags.String("sheet", "", "sheet name or 1-based index (default: first sheet)")
	flags.Bool("dry-run", false, "prepare line items without contacting Printavo")
	flags.Bool("consolidate", false, "merge rows with the same style, color, description, and price")
	flags.Bool("no-ai", false, "skip ambiguous rows instead of asking the language model")
	flags.Bool("no-history", false, "do not record the run in the history database")
	flags.Bool("export-sheets", false, "append the run to the configured Google Sheet")
	flags.BoolP("yes", "y", false, "submit without asking for confirmation")
	flags.BoolP("verbose", "v", false, "list every row in the report")
	flags.String("report-json", "", "write the report as JSON to this path")

	flags.String("customer-id", "", "Printavo contact ID")
	flags.String("customer-email", "", "customer email, used to find or create the contact")
	flags.String("first-name", "", "customer first name")
	flags.String("last-name", "", "customer last name")
	flags.String("company", "", "customer company name")
	flags.String("phone", "", "customer phone")

	flags.String("note", "", "customer note on the quote")
	flags.String("production-note", "", "production note on the quote")
	flags.String("default-price", "", "unit price for rows without one")
	flags.Int("concurrency", 0, "maximum concurrent remote calls")

	bindFlag(flags, "sheet", "workbook.sheet")
	bindFlag(flags, "consolidate", "assembly.consolidate")
	bindFlag(flags, "customer-id", "customer.id")
	bindFlag(flags, "customer-email", "customer.email")
	bindFlag(flags, "first-name", "customer.first_name")
	bindFlag(flags, "last-name", "customer.last_name")
	bindFlag(flags, "company", "customer.company")
	bindFlag(flags, "phone", "customer.phone")
	bindFlag(flags, "note", "order.customer_note")
	bindFlag(flags, "production-note", "order.production_note")
	bindFlag(flags, "default-price", "assembly.default_price")
	bindFlag(flags, "concurrency", "pipeline.concurrency")

	return cmd
}

type submitOptions struct {
	reportJSON   string
	dryRun       bool
	yes          bool
	verbose      bool
	noHistory    bool
	exportSheets bool
}

func submitOptionsFrom(cmd *cobra.Command, cfg *config.Config) submitOptions {
	flags := cmd.Flags()
	opts := submitOptions{}
	opts.dryRun, _ = flags.GetBool("dry-run")
	opts.yes, _ = flags.GetBool("yes")
	opts.verbose, _ = flags.GetBool("verbose")
	opts.noHistory, _ = flags.GetBool("no-history")
	opts.exportSheets, _ = flags.GetBool("export-sheets")
	opts.reportJSON, _ = flags.GetString("report-json")

	if noAI, _ := flags.GetBool("no-ai"); noAI {
		cfg.LLM.Enabled = false
	}
	if opts.noHistory {
		cfg.Storage.Enabled = false
	}
	if opts.exportSheets {
		cfg.Sheets.Enabled = true
	}
	return opts
}

func (a *app) runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg
	logger := a.logger
	opts := submitOptionsFrom(cmd, cfg)

	if opts.dryRun && cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		logger.Warn("No language model API key; ambiguous rows will be skipped")
		cfg.LLM.Enabled = false
	}
	if !opts.dryRun {
		if err := cfg.ValidateForSubmit(); err != nil {
			return common.NewUserError("cannot submit", err)
		}
	}

	book, err := workbook.Open(args[0], workbook.Options{
		Sheet:          cfg.Workbook.Sheet,
		HeaderScanRows: cfg.Workbook.HeaderScanRows,
	})
	if err != nil {
		return common.NewUserError("cannot read workbook", err)
	}

	extractor, err := a.newExtractor(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	var platform service.OrderPlatform
	if !opts.dryRun {
		platform, err = a.newPlatform(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create Printavo client: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if !opts.dryRun && !opts.yes {
		question := fmt.Sprintf("Create a Printavo quote from %s for %s?", book.Path(), customerLabel(cfg.Customer))
		ok, err := cli.NewConfirmer(cmd.InOrStdin(), out).Confirm(ctx, question)
		if err != nil {
			return err
		}
		if !ok {
			_, err := fmt.Fprintln(out, cli.FormatWarning("Submission cancelled"))
			return err
		}
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), cfg.Pipeline.DrainTimeout)
	runCtx := interrupts.HandleInterrupts(ctx)
	defer interrupts.Stop()

	orch := pipeline.New(pipelineConfig(cfg), extractor, platform, logger)
	progress := cli.NewProgress(cmd.ErrOrStderr())
	orch.OnProgress(progress.Handle)

	report, runErr := orch.Run(runCtx, pipeline.Request{Source: book, DryRun: opts.dryRun})
	if report == nil {
		return runErr
	}

	if err := cli.RenderReport(out, report, opts.verbose); err != nil {
		logger.Warn("Failed to render report", "error", err)
	}

	// The run context may be canceled by now; the report is still recorded.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if opts.reportJSON != "" {
		if err := writeReportJSON(opts.reportJSON, report); err != nil {
			common.LogError(ctx, err, "Failed to write JSON report", common.Fields{"path": opts.reportJSON})
		} else {
			_, _ = fmt.Fprintln(out, cli.FormatSuccess("Report written to "+opts.reportJSON))
		}
	}
	if cfg.Storage.Enabled {
		a.recordRun(persistCtx, report)
	}
	if cfg.Sheets.Enabled {
		a.exportRun(persistCtx, report)
	}

	if runErr != nil {
		if interrupts.WasInterrupted() {
			return common.NewUserError("submission interrupted", runErr)
		}
		if common.IsRetryable(runErr) {
			_, _ = fmt.Fprintln(out, cli.FormatWarning("The failure looks temporary. Check Printavo for a partial quote before rerunning."))
		}
		return common.NewUserError("run aborted", runErr)
	}
	return nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Customer: model.CustomerCriteria{
			ID:          cfg.Customer.ID,
			Email:       cfg.Customer.Email,
			FirstName:   cfg.Customer.FirstName,
			LastName:    cfg.Customer.LastName,
			CompanyName: cfg.Customer.Company,
			Phone:       cfg.Customer.Phone,
		},
		Metadata: assembly.MetadataOptions{
			CustomerNote:      cfg.Order.CustomerNote,
			ProductionNote:    cfg.Order.ProductionNote,
			StatusID:          cfg.Printavo.StatusID,
			DueInDays:         cfg.Order.DueInDays,
			CustomerDueInDays: cfg.Order.CustomerDueInDays,
		},
		Assembly: assembly.Options{
			DefaultPrice: cfg.DefaultUnitPrice(),
			Consolidate:  cfg.Assembly.Consolidate,
		},
		Concurrency:  cfg.Pipeline.Concurrency,
		DrainTimeout: cfg.Pipeline.DrainTimeout,
	}
}

func customerLabel(c config.CustomerConfig) string {
	switch {
	case c.ID != "":
		return "contact " + c.ID
	case c.Email != "":
		return c.Email
	default:
		return "an unnamed customer"
	}
}

func writeReportJSON(path string, report *model.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := config.EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	return nil
}

// recordRun saves the report to the history database. Failures are logged;
// the run itself already happened.
func (a *app) recordRun(ctx context.Context, report *model.Report) {
	store, err := a.openStore(ctx, a.cfg)
	if err != nil {
		common.LogError(ctx, err, "Run history unavailable", common.Fields{"path": a.cfg.Storage.DatabasePath})
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("Failed to close history database", "error", err)
		}
	}()

	if err := store.SaveReport(ctx, report); err != nil {
		common.LogError(ctx, err, "Failed to record run", common.Fields{"run_id": report.RunID})
		return
	}
	common.LogDebug(ctx, "Recorded run", common.Fields{"run_id": report.RunID, "path": a.cfg.Storage.DatabasePath})
}

func (a *app) exportRun(ctx context.Context, report *model.Report) {
	exporter, err := a.newExporter(ctx, a.cfg, a.logger)
	if err != nil {
		a.logger.Warn("Sheets export unavailable", "error", err)
		return
	}
	if err := exporter.Export(ctx, report); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			a.logger.Warn("Sheets export not authorized; check the sheets credentials", "error", err)
			return
		}
		a.logger.Warn("Sheets export failed", "run_id", report.RunID, "error", err)
		return
	}
	common.LogInfo(ctx, "Exported run to Google Sheets", common.Fields{"run_id": report.RunID})
	_, _ = fmt.Fprintln(a.stdout, cli.FormatSuccess("Run appended to Google Sheets"))
}
