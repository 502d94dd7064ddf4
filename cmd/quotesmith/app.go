package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/config"
	"github.com/Veraticus/quotesmith/internal/llm"
	"github.com/Veraticus/quotesmith/internal/printavo"
	"github.com/Veraticus/quotesmith/internal/service"
	"github.com/Veraticus/quotesmith/internal/sheets"
	"github.com/Veraticus/quotesmith/internal/storage"
)

// viperKey is the flag annotation naming the config key a flag overrides.
const viperKey = "viper"

// app carries the state shared by every command of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger

	newPlatform  func(*config.Config, *slog.Logger) (service.OrderPlatform, error)
	newExtractor func(*config.Config, *slog.Logger) (service.Extractor, error)
	newExporter  func(context.Context, *config.Config, *slog.Logger) (service.ReportExporter, error)
	openStore    func(context.Context, *config.Config) (service.RunStore, error)

	cfgFile string
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:        stdin,
		stdout:       stdout,
		stderr:       stderr,
		newPlatform:  newPrintavoPlatform,
		newExtractor: newLLMExtractor,
		newExporter:  newSheetsExporter,
		openStore:    openSQLiteStore,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quotesmith",
		Short: "🧾 Turn order spreadsheets into Printavo quotes",
		Long: `quotesmith reads an order spreadsheet, normalizes every row into a
line item, asks a language model about rows it cannot read on its own, and
submits the result as a single Printavo quote.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/quotesmith/config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	root.PersistentFlags().String("db", "", "run history database path")
	bindFlag(root.PersistentFlags(), "log-level", "logging.level")
	bindFlag(root.PersistentFlags(), "log-format", "logging.format")
	bindFlag(root.PersistentFlags(), "db", "storage.database_path")

	root.AddCommand(a.submitCmd())
	root.AddCommand(a.previewCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(a.versionCmd())

	return root
}

// bindFlag marks a flag as overriding a config key. The binding is applied
// to a fresh viper instance when the command runs.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, viperKey, []string{key})
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKey]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	config.Configure(v, a.cfgFile)
	if err := config.ReadFile(v); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	level, err := common.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = common.SetupLogger(a.stderr, level, cfg.Logging.Format)
	cmd.SetContext(common.WithLogger(cmd.Context(), a.logger))

	a.v = v
	a.cfg = cfg
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded config file", "path", used)
	}
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "quotesmith %s\n", version)
			return err
		},
	}
}

func newPrintavoPlatform(cfg *config.Config, logger *slog.Logger) (service.OrderPlatform, error) {
	return printavo.New(printavo.Config{
		Endpoint:   cfg.Printavo.Endpoint,
		Email:      cfg.Printavo.Email,
		Token:      cfg.Printavo.Token,
		Timeout:    cfg.Printavo.Timeout,
		RateLimit:  cfg.Printavo.RateLimit,
		MaxRetries: cfg.Printavo.MaxRetries,
		RetryDelay: cfg.Printavo.RetryDelay,
	}, logger)
}

// newLLMExtractor returns a nil Extractor when AI extraction is disabled.
func newLLMExtractor(cfg *config.Config, logger *slog.Logger) (service.Extractor, error) {
	if !cfg.LLM.Enabled {
		return nil, nil
	}
	extractor, err := llm.NewExtractor(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		RateLimit:   cfg.LLM.RateLimit,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return extractor, nil
}

func newSheetsExporter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.ReportExporter, error) {
	wc, err := cfg.SheetsWriterConfig()
	if err != nil {
		return nil, err
	}
	return sheets.NewWriter(ctx, wc, logger)
}

func openSQLiteStore(ctx context.Context, cfg *config.Config) (service.RunStore, error) {
	return storage.Open(ctx, cfg.Storage.DatabasePath)
}
