package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/desertwitch/sectorfs/internal/cache"
	"github.com/desertwitch/sectorfs/internal/device"
	"github.com/desertwitch/sectorfs/internal/file"
	"github.com/desertwitch/sectorfs/internal/filesystem"
	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/dustin/go-humanize"
)

const helpText = `commands:
  format              destructively reinitialize the volume
  mkdir <path>        create a directory
  create <path> <n>   create a file of n bytes
  write <path> <text> write text into a file, growing it as needed
  cat <path>          print a file's content
  ls [path]           list a directory (default: working directory)
  cd <path>           change the working directory
  pwd                 print the working directory
  rm <path>           remove a file or empty directory
  stat <path>         print an object's identity, type and size
  info                print volume and cache statistics
  help                print this help
  quit                leave the console`

type cacheProvider interface {
	Stats() cache.Stats
}

type freemapProvider interface {
	CountFree() uint32
}

type inodeProvider interface {
	Open(sector schema.Sector) (schema.InodeRef, error)
}

type dirProvider interface {
	OpenSector(sector schema.Sector) (schema.Directory, error)
}

// App implements the console command set over the filesystem facade and its
// collaborator layers. It doubles as the UI's console provider.
type App struct {
	dev     *device.Device
	cache   cacheProvider
	freemap freemapProvider
	inodes  inodeProvider
	dirs    dirProvider
	fs      *filesystem.Handler
	ec      *filesystem.ExecContext
}

// NewApp returns a pointer to a new [App] over the given handlers.
func NewApp(dev *device.Device, cacheHandler cacheProvider, freemapHandler freemapProvider,
	inodeHandler inodeProvider, dirHandler dirProvider, fsHandler *filesystem.Handler,
) *App {
	return &App{
		dev:     dev,
		cache:   cacheHandler,
		freemap: freemapHandler,
		inodes:  inodeHandler,
		dirs:    dirHandler,
		fs:      fsHandler,
		ec:      filesystem.NewExecContext(),
	}
}

// Execute runs one console command line and returns its output, plus
// whether the console should quit.
func (app *App) Execute(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	cmd, args := fields[0], fields[1:]

	var (
		output string
		err    error
	)

	switch cmd {
	case "help":
		output = helpText
	case "quit", "exit":
		return "bye.", true
	case "format":
		output, err = app.cmdFormat()
	case "mkdir":
		output, err = app.cmdMkdir(args)
	case "create":
		output, err = app.cmdCreate(args)
	case "write":
		output, err = app.cmdWrite(args)
	case "cat":
		output, err = app.cmdCat(args)
	case "ls":
		output, err = app.cmdList(args)
	case "cd":
		output, err = app.cmdChangeDir(args)
	case "pwd":
		output, err = app.fs.WorkingDirPath(app.ec)
	case "rm":
		output, err = app.cmdRemove(args)
	case "stat":
		output, err = app.cmdStat(args)
	case "info":
		output = app.cmdInfo()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	if err != nil {
		return "error: " + err.Error(), false
	}

	return output, false
}

// Prompt renders the console prompt for the context's working directory.
func (app *App) Prompt() string {
	pwd, err := app.fs.WorkingDirPath(app.ec)
	if err != nil {
		pwd = "?"
	}

	return pwd + " > "
}

// StatusLine renders the one-line volume status below the transcript.
func (app *App) StatusLine() string {
	stats := app.cache.Stats()
	freeSectors := app.freemap.CountFree()

	return fmt.Sprintf("%s (%s) | %s free | cache: %s hits, %s misses, %s evictions",
		app.dev.Path(),
		humanize.IBytes(uint64(app.dev.SectorCount())*schema.SectorSize),
		humanize.IBytes(uint64(freeSectors)*schema.SectorSize),
		humanize.Comma(int64(stats.Hits)),     //nolint:gosec
		humanize.Comma(int64(stats.Misses)),   //nolint:gosec
		humanize.Comma(int64(stats.Evictions)), //nolint:gosec
	)
}

func (app *App) cmdFormat() (string, error) {
	if err := app.fs.Reformat(); err != nil {
		return "", err
	}
	app.ec = filesystem.NewExecContext()

	return "volume formatted.", nil
}

func (app *App) cmdMkdir(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: mkdir <path>", ErrUsage)
	}

	if err := app.fs.Create(app.ec, args[0], 0, true); err != nil {
		return "", err
	}

	return "created directory " + args[0], nil
}

func (app *App) cmdCreate(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: create <path> <size>", ErrUsage)
	}

	size, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: size %q", ErrUsage, args[1])
	}

	if err := app.fs.Create(app.ec, args[0], size, false); err != nil {
		return "", err
	}

	return fmt.Sprintf("created %s (%d bytes)", args[0], size), nil
}

func (app *App) cmdWrite(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: write <path> <text...>", ErrUsage)
	}

	handle, err := app.fs.Open(app.ec, args[0])
	if err != nil {
		return "", err
	}
	defer handle.Close() //nolint:errcheck

	f, ok := handle.(*file.File)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, args[0])
	}

	text := strings.Join(args[1:], " ")
	n, err := f.WriteAt([]byte(text), 0)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("wrote %d bytes to %s", n, args[0]), nil
}

func (app *App) cmdCat(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: cat <path>", ErrUsage)
	}

	handle, err := app.fs.Open(app.ec, args[0])
	if err != nil {
		return "", err
	}
	defer handle.Close() //nolint:errcheck

	f, ok := handle.(*file.File)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, args[0])
	}

	buf := make([]byte, f.Size())
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return string(buf), nil
}

func (app *App) cmdList(args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("%w: ls [path]", ErrUsage)
	}

	var dir schema.Directory
	if len(args) == 0 {
		d, err := app.dirs.OpenSector(app.ec.WorkingDir())
		if err != nil {
			return "", err
		}
		dir = d
	} else {
		handle, err := app.fs.Open(app.ec, args[0])
		if err != nil {
			return "", err
		}

		d, ok := handle.(schema.Directory)
		if !ok {
			handle.Close() //nolint:errcheck

			return "", fmt.Errorf("%w: %s", filesystem.ErrNotDirectory, args[0])
		}
		dir = d
	}
	defer dir.Close() //nolint:errcheck

	entries, err := dir.List()
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var sb strings.Builder
	for _, ent := range entries {
		ref, err := app.inodes.Open(ent.Sector)
		if err != nil {
			return "", err
		}

		kind := "-"
		if ref.IsDir() {
			kind = "d"
		}
		fmt.Fprintf(&sb, "%s %10s  %4d  %s\n", kind, humanize.IBytes(ref.Length()), ent.Sector, ent.Name)
		ref.Close() //nolint:errcheck
	}

	if sb.Len() == 0 {
		return "(empty)", nil
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (app *App) cmdChangeDir(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: cd <path>", ErrUsage)
	}

	if err := app.fs.ChangeDir(app.ec, args[0]); err != nil {
		return "", err
	}

	return app.fs.WorkingDirPath(app.ec)
}

func (app *App) cmdRemove(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: rm <path>", ErrUsage)
	}

	if err := app.fs.Remove(app.ec, args[0]); err != nil {
		return "", err
	}

	return "removed " + args[0], nil
}

func (app *App) cmdStat(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: stat <path>", ErrUsage)
	}

	handle, err := app.fs.Open(app.ec, args[0])
	if err != nil {
		return "", err
	}
	defer handle.Close() //nolint:errcheck

	kind := "file"
	if handle.IsDir() {
		kind = "directory"
	}

	return fmt.Sprintf("%s: %s, inumber %d, %d bytes (%s)",
		args[0], kind, handle.Inumber(), handle.Size(), humanize.IBytes(handle.Size())), nil
}

func (app *App) cmdInfo() string {
	stats := app.cache.Stats()
	freeSectors := app.freemap.CountFree()
	totalSectors := app.dev.SectorCount()

	var sb strings.Builder
	fmt.Fprintf(&sb, "image:    %s\n", app.dev.Path())
	fmt.Fprintf(&sb, "sectors:  %d (%s)\n", totalSectors, humanize.IBytes(uint64(totalSectors)*schema.SectorSize))
	fmt.Fprintf(&sb, "free:     %d (%s)\n", freeSectors, humanize.IBytes(uint64(freeSectors)*schema.SectorSize))
	fmt.Fprintf(&sb, "cache:    %s hits, %s misses, %s evictions, %s verified",
		humanize.Comma(int64(stats.Hits)),      //nolint:gosec
		humanize.Comma(int64(stats.Misses)),    //nolint:gosec
		humanize.Comma(int64(stats.Evictions)), //nolint:gosec
		humanize.Comma(int64(stats.Verified)),  //nolint:gosec
	)

	return sb.String()
}
