package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dwhload/internal/catalog"
	"dwhload/internal/config"
	"dwhload/internal/pipeline"
	"dwhload/internal/security"
	"dwhload/internal/ui"
	"dwhload/internal/warehouse"
	"dwhload/pkg/models"
)

// readConfig reads dwh.cfg and applies --dialect.
func readConfig() (*models.Config, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, err
	}
	if dialectFlag != "" {
		cfg.Warehouse.Dialect = string(dialectFlag)
	}
	return cfg, nil
}

// loadConfig is readConfig plus a missing password filled from the
// credential store.
func loadConfig() (*models.Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Cluster.Password == "" {
		store, err := security.NewCredentialManager()
		if err != nil {
			logger.Warn("Credential store unavailable", zap.Error(err))
		} else if err := config.ResolvePassword(cfg, store, security.Account(cfg.Cluster)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// buildCatalog renders the statement catalog for cfg.
func buildCatalog(cfg *models.Config) (*catalog.Catalog, error) {
	d, err := config.Dialect(cfg)
	if err != nil {
		return nil, err
	}
	return catalog.New(config.CatalogConfig(cfg), d)
}

// connect validates the connection settings and opens the warehouse.
func connect(ctx context.Context, cfg *models.Config) (*warehouse.Service, error) {
	wc, err := config.WarehouseConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := warehouse.ValidateConfig(wc); err != nil {
		return nil, err
	}

	logger.Debug("Connecting", zap.String("dsn", wc.Redacted()))

	service := warehouse.NewService(wc, warehouse.WithLogger(logger))
	spinner := ui.NewSpinner(fmt.Sprintf("Connecting to %s warehouse", cfg.Warehouse.Dialect))
	spinner.Start()
	if err := service.Connect(ctx); err != nil {
		spinner.Stop(false, "Connection failed")
		return nil, err
	}
	spinner.Stop(true, "Connected")
	return service, nil
}

// runSteps connects and runs steps, printing progress and a summary.
func runSteps(ctx context.Context, steps ...pipeline.Step) (*pipeline.Report, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	service, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer service.Close()

	progress := ui.NewStatementProgress()
	report, err := pipeline.New(service, c, logger, progress).Run(ctx, steps...)
	progress.Finish()

	if report != nil {
		fmt.Println()
		fmt.Print(ui.RenderReport(report))
		if len(report.Counts) > 0 {
			fmt.Println()
			fmt.Print(ui.RenderCounts(report.Counts))
		}
	}
	return report, err
}

// confirmDrop asks before statements that drop every table.
func confirmDrop(yes bool, action string) (bool, error) {
	if yes {
		return true, nil
	}
	return ui.Confirm(fmt.Sprintf("%s drops all seven warehouse tables. Continue?", action), false)
}
