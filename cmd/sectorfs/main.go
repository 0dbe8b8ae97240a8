// sectorfs serves a sector-addressed hierarchical file system out of a
// file-backed block device image and exposes it on an interactive console.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/desertwitch/sectorfs/internal/cache"
	"github.com/desertwitch/sectorfs/internal/device"
	"github.com/desertwitch/sectorfs/internal/directory"
	"github.com/desertwitch/sectorfs/internal/filesystem"
	"github.com/desertwitch/sectorfs/internal/freemap"
	"github.com/desertwitch/sectorfs/internal/inode"
	"github.com/desertwitch/sectorfs/internal/pathing"
	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/desertwitch/sectorfs/internal/ui"
	"github.com/lmittmann/tint"
)

const (
	stackTraceBufMax = 1 << 24
)

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string

	logManager = NewSlogManager()

	imagePath  = flag.String("image", "", "path of the backing device image")
	sectorArg  = flag.Uint("sectors", 0, "create the image with this sector count if missing")
	formatArg  = flag.Bool("format", false, "format the volume before serving it")
	configArg  = flag.String("config", "", "path of an optional configuration file")
	uiEnabled  = flag.Bool("ui", true, "enable the UI")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func setupLogging() {
	logManager.AddHandler("terminal", tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(slog.New(logManager))
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()

	sigChan3 := make(chan os.Signal, 1)
	signal.Notify(sigChan3, syscall.SIGUSR2)
	go func() {
		for range sigChan3 {
			runtime.GC()
		}
	}()
}

// acquireDevice opens the configured image file, or creates a fresh one when
// it is missing and a sector count was configured. A fresh image always
// forces a format, as it cannot hold a volume yet.
func acquireDevice(registry *device.Registry, cfg *AppConfiguration,
	osProvider *schema.OS, unixProvider *schema.Unix,
) error {
	if _, err := osProvider.Stat(cfg.ImagePath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cfg.Sectors == 0 {
			return err
		}

		dev, err := device.Create(cfg.ImagePath, cfg.Sectors, osProvider, unixProvider)
		if err != nil {
			return err
		}

		slog.Info("Created a fresh device image.", "image", cfg.ImagePath, "sectors", cfg.Sectors)
		cfg.Format = true
		registry.Register(device.RoleFilesystem, dev)

		return nil
	}

	dev, err := device.Open(cfg.ImagePath, osProvider, unixProvider)
	if err != nil {
		return err
	}
	registry.Register(device.RoleFilesystem, dev)

	return nil
}

func runUI(ctx context.Context, cancel context.CancelFunc, app *App) {
	uiHandler := ui.NewHandler(ctx, cancel, app)

	logManager.AddHandler("ui", tint.NewHandler(uiHandler.LogWriter, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	logManager.RemoveHandler("terminal")
	defer func() {
		setupLogging()
		logManager.RemoveHandler("ui")
	}()

	if err := uiHandler.Launch(); err != nil {
		slog.Error("UI failure: falling back to terminal.", "err", err)
		runREPL(ctx, app)
	}
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flag.Parse()
	setupLogging()
	setupSignalHandlers(cancel)

	memObserver := newMemoryObserver(ctx)
	defer memObserver.Stop()

	cpuProfiler := newCPUProfiler(ctx, cpuprofile)
	defer cpuProfiler.Stop()

	allocProfiler := newAllocProfiler(ctx, memprofile)
	defer allocProfiler.Stop()

	osProvider := &schema.OS{}
	unixProvider := &schema.Unix{}

	cfg, err := loadConfiguration()
	if err != nil {
		slog.Error("Failed to load the configuration.", "err", err)
		ExitCode = 1

		return
	}

	registry := device.NewRegistry()
	if err := acquireDevice(registry, cfg, osProvider, unixProvider); err != nil {
		slog.Error("Failed to acquire the device image.", "err", err)
		ExitCode = 1

		return
	}
	defer registry.CloseAll() //nolint:errcheck

	dev, err := registry.Get(device.RoleFilesystem)
	if err != nil {
		// Unrecoverable: without a backing device there is no filesystem
		// to serve.
		slog.Error("No backing block device.", "err", err)
		ExitCode = 1

		return
	}

	cacheHandler := cache.NewHandler(dev, cfg.CacheSlots, cfg.Verify)
	freemapHandler := freemap.NewHandler(cacheHandler, dev.SectorCount())
	inodeHandler := inode.NewHandler(cacheHandler, freemapHandler)
	dirHandler := directory.NewHandler(inodeHandler)
	walker := pathing.NewWalker(dirHandler)
	fsHandler := filesystem.NewHandler(dev, cacheHandler, inodeHandler, freemapHandler, dirHandler, walker)

	if err := fsHandler.Init(cfg.Format); err != nil {
		slog.Error("Failed to initialize the filesystem.", "err", err)
		ExitCode = 1

		return
	}
	defer func() {
		if err := fsHandler.Done(); err != nil {
			slog.Error("Failed to tear down the filesystem.", "err", err)
			ExitCode = 1
		}
	}()

	app := NewApp(dev, cacheHandler, freemapHandler, inodeHandler, dirHandler, fsHandler)

	if uiEnabled != nil && *uiEnabled {
		runUI(ctx, cancel, app)
	} else {
		runREPL(ctx, app)
	}
}
