// Command mediafilter stores items and derives text and thumbnails from
// their bitstreams.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/mediafilter/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mediafilter/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/mediafilter/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mediafilter/internal/adapters/driving/cli"
	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/services"
	"github.com/custodia-labs/mediafilter/internal/filters/builtin"
	"github.com/custodia-labs/mediafilter/internal/filters/pdf"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// envHome overrides the data directory.
const envHome = "MEDIAFILTER_HOME"

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.SetBootstrap(wire)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveHome picks the data directory: the --home flag, then
// MEDIAFILTER_HOME, then ~/.mediafilter.
func resolveHome(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envHome); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".mediafilter"), nil
}

// wire opens the stores under the data directory and builds the services.
func wire(homeFlag string) (*cli.Services, error) {
	home, err := resolveHome(homeFlag)
	if err != nil {
		return nil, err
	}
	logger.Debug("data directory: %s", home)

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)

	settings, err := settingsService.MediaFilter()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	closeStore := func(err error) (*cli.Services, error) {
		return nil, errors.Join(err, store.Close())
	}

	assets, err := filesystem.NewAssetStore(filepath.Join(home, "assetstore"))
	if err != nil {
		return closeStore(fmt.Errorf("open asset store: %w", err))
	}

	formats := store.FormatRegistry()
	if err := services.SeedFormats(context.Background(), formats, domain.DefaultFormats()); err != nil {
		return closeStore(fmt.Errorf("seed formats: %w", err))
	}

	registry := services.NewFilterRegistry()
	if err := builtin.Register(registry, settings); err != nil {
		return closeStore(err)
	}
	if err := registry.Configure(settings); err != nil {
		return closeStore(fmt.Errorf("configure filters: %w", err))
	}
	if registry.Enabled(pdf.Name) {
		if err := pdf.CheckAvailable(); err != nil {
			logger.Warn("%v; %s", err, pdf.InstallInstructions())
		}
	}

	itemStore := store.ItemStore()
	bitstreams := store.BitstreamStore()

	manager := services.NewMediaFilterManager(itemStore, bitstreams, formats, assets, registry, settings)
	items := services.NewItemService(itemStore, bitstreams, formats, assets)
	scheduler := services.NewScheduler(settingsService.Scheduler(), store.SchedulerStore(), manager, settings.RunOptions())

	return &cli.Services{
		MediaFilter: manager,
		Items:       items,
		Settings:    settingsService,
		Scheduler:   scheduler,
		Close:       store.Close,
	}, nil
}
