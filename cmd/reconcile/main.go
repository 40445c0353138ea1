package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apprecon "github.com/recon/backend/internal/application/recon"
	"github.com/recon/backend/internal/domain/recon"
	"github.com/recon/backend/internal/infrastructure/alias"
	"github.com/recon/backend/internal/infrastructure/config"
	"github.com/recon/backend/internal/infrastructure/extract"
	"github.com/recon/backend/internal/infrastructure/logger"
	"github.com/recon/backend/internal/infrastructure/persistence"
	"github.com/recon/backend/internal/infrastructure/scheduler"
)

func main() {
	var (
		payablesFile string
		ledgerFile   string
		outputDir    string
		force        bool
	)

	flag.StringVar(&payablesFile, "payables", "", "Path to the payables extract (overrides config)")
	flag.StringVar(&ledgerFile, "ledger", "", "Path to the ledger extract (overrides config)")
	flag.StringVar(&outputDir, "out", "", "Directory for the xlsx report (overrides config)")
	flag.BoolVar(&force, "force", false, "Run even when the business-day schedule would decline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if payablesFile == "" {
		payablesFile = cfg.Extract.PayablesFile
	}
	if ledgerFile == "" {
		ledgerFile = cfg.Extract.LedgerFile
	}
	if outputDir == "" {
		outputDir = cfg.Export.OutputDir
	}
	if payablesFile == "" || ledgerFile == "" {
		log.Fatal("Both extracts are required; set -payables/-ledger or extract.payables_file/extract.ledger_file")
	}

	params, err := buildParams(&cfg.Recon)
	if err != nil {
		log.Fatal("Invalid reconciliation parameters", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	aliases, err := loadAliases(cfg.Recon.AliasFile)
	if err != nil {
		log.Fatal("Failed to load vendor alias file", zap.Error(err))
	}
	log.Info("Vendor alias directory loaded", zap.Int("entries", aliases.Size()))

	var trigger recon.RunTrigger = recon.AlwaysRun{}
	if cfg.Scheduler.Enabled && !force {
		trigger = scheduler.NewBusinessDayTrigger(cfg.Scheduler.RunDays, cfg.Scheduler.HolidayDates())
	}

	delimiter := rune(cfg.Extract.Delimiter[0])
	payablesRows, err := extract.NewReader(recon.SourcePayables, extract.WithDelimiter(delimiter)).ReadFile(payablesFile)
	if err != nil {
		log.Fatal("Failed to read payables extract", zap.String("file", payablesFile), zap.Error(err))
	}
	ledgerRows, err := extract.NewReader(recon.SourceLedger, extract.WithDelimiter(delimiter)).ReadFile(ledgerFile)
	if err != nil {
		log.Fatal("Failed to read ledger extract", zap.String("file", ledgerFile), zap.Error(err))
	}
	log.Info("Extracts loaded",
		zap.Int("payables_rows", len(payablesRows)),
		zap.Int("ledger_rows", len(ledgerRows)),
	)

	store := persistence.NewGormRunStore(db.DB)
	service := apprecon.NewReconciliationService(store, aliases,
		apprecon.WithTrigger(trigger),
		apprecon.WithParams(params),
		apprecon.WithLogger(log),
	)

	ctx := context.Background()
	result, err := service.Execute(ctx, payablesRows, ledgerRows, time.Now().UTC())
	if err != nil {
		log.Fatal("Reconciliation run failed", zap.Error(err))
	}
	if result.Skipped {
		log.Info("Not a scheduled business day; run skipped (use -force to override)")
		return
	}

	ctx, runLog := logger.WithRunID(ctx, log, result.RunID)
	runLog.Info("Reconciliation run committed",
		zap.Int("entries", result.EntryCount),
		zap.Int("discrepancies", len(result.Discrepancies)),
		zap.Int("rejections", len(result.Rejections)),
	)
	for _, r := range result.Rejections {
		runLog.Warn("Row rejected",
			zap.String("source", r.Source.String()),
			zap.Int("row", r.RowIndex),
			zap.String("code", r.Code),
			zap.String("reason", r.Reason),
		)
	}

	reports := apprecon.NewReportService(store)
	report, err := reports.BuildReport(ctx, result.RunID)
	if err != nil {
		runLog.Fatal("Failed to assemble report", zap.Error(err))
	}

	filename := fmt.Sprintf("divergencias-%s.xlsx", result.ExecutedAt.Format(cfg.Export.FilenameStamp))
	outPath := filepath.Join(outputDir, filename)
	exporter := apprecon.NewExcelExporter(cfg.Export.SheetName)
	if err := exporter.Export(report, outPath); err != nil {
		runLog.Fatal("Failed to write report workbook", zap.Error(err))
	}

	runLog.Info("Report written",
		zap.String("path", outPath),
		zap.Int("rows", len(report.Rows)),
	)
}

// buildParams converts the configured threshold strings into engine parameters.
func buildParams(cfg *config.ReconConfig) (recon.Params, error) {
	params := recon.DefaultParams()

	materiality, err := decimal.NewFromString(cfg.MaterialityThreshold)
	if err != nil {
		return params, fmt.Errorf("recon.materiality_threshold %q: %w", cfg.MaterialityThreshold, err)
	}
	tolerance, err := decimal.NewFromString(cfg.AmountTolerance)
	if err != nil {
		return params, fmt.Errorf("recon.amount_tolerance %q: %w", cfg.AmountTolerance, err)
	}

	params.MaterialityThreshold = materiality
	params.AmountTolerance = tolerance
	params.DateWindowDays = cfg.DateWindowDays
	params.IncludeCleanMatches = cfg.IncludeCleanMatches
	params.Concurrency = cfg.Concurrency
	return params, nil
}

// loadAliases reads the vendor alias CSV, or returns an empty directory when
// no file is configured.
func loadAliases(path string) (*alias.Directory, error) {
	if path == "" {
		return alias.New(nil), nil
	}
	return alias.LoadFile(path)
}
