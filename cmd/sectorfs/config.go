package main

import (
	"fmt"

	"github.com/desertwitch/sectorfs/internal/cache"
	"github.com/desertwitch/sectorfs/internal/configuration"
)

const (
	// ConfigImagePath is the configuration key for the device image path.
	ConfigImagePath = "SECTORFS_IMAGE"

	// ConfigSectors is the configuration key for the sector count used
	// when a missing device image is created.
	ConfigSectors = "SECTORFS_SECTORS"

	// ConfigCacheSlots is the configuration key for the number of sector
	// buffers held by the cache.
	ConfigCacheSlots = "SECTORFS_CACHE_SLOTS"

	// ConfigVerify is the configuration key enabling the cache's sector
	// checksum verification mode.
	ConfigVerify = "SECTORFS_VERIFY"
)

// AppConfiguration is the principal structure holding the application
// configuration, assembled from an optional configuration file overridden
// by command-line flags.
type AppConfiguration struct {
	ImagePath  string
	Sectors    uint32
	CacheSlots int
	Verify     bool
	Format     bool
}

// loadConfiguration assembles the [AppConfiguration]. Keys from the
// configuration file named by -config form the base; any explicitly set
// command-line flags override them.
func loadConfiguration() (*AppConfiguration, error) {
	cfg := &AppConfiguration{
		CacheSlots: cache.DefaultSlots,
	}

	if configArg != nil && *configArg != "" {
		configHandler := configuration.NewHandler(&configuration.GodotenvProvider{})

		envMap, err := configHandler.ReadGeneric(*configArg)
		if err != nil {
			return nil, fmt.Errorf("(config) %w", err)
		}

		cfg.ImagePath = configHandler.MapKeyToString(envMap, ConfigImagePath)
		cfg.Sectors = uint32(configHandler.MapKeyToUInt64(envMap, ConfigSectors)) //nolint:gosec
		cfg.Verify = configHandler.MapKeyToBool(envMap, ConfigVerify)

		if slots := configHandler.MapKeyToInt(envMap, ConfigCacheSlots); slots > 0 {
			cfg.CacheSlots = slots
		}
	}

	if imagePath != nil && *imagePath != "" {
		cfg.ImagePath = *imagePath
	}
	if sectorArg != nil && *sectorArg > 0 {
		cfg.Sectors = uint32(*sectorArg) //nolint:gosec
	}
	if formatArg != nil && *formatArg {
		cfg.Format = true
	}

	if cfg.ImagePath == "" {
		return nil, fmt.Errorf("(config) %w", ErrNoImageConfigured)
	}

	return cfg, nil
}
