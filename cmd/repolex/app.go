package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/config"
	"github.com/c360studio/repolex/manager"
	"github.com/c360studio/repolex/progress"
	"github.com/c360studio/repolex/repostore"
	"github.com/c360studio/repolex/store"
)

// App wires the process-wide resources: configuration, logger, store and
// managers. They are constructed once per invocation and closed together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	repos  *repostore.Store

	repoMgr  *manager.RepoManager
	graphMgr *manager.GraphManager

	logFile *os.File
}

// newApp loads configuration and opens the store.
func newApp(storageRoot string) (*App, error) {
	loader := config.NewLoader(slog.Default())
	cfg, err := loader.Load(storageRoot)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg}
	app.logger = app.setupLogger()

	st, err := store.Open(store.Options{
		Path:         cfg.StorePath(),
		Logger:       app.logger,
		QueryTimeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
	})
	if err != nil {
		app.closeLog()
		return nil, err
	}
	app.store = st
	app.repos = repostore.New(cfg.ReposPath(), cfg.AuthToken, app.logger)
	app.repoMgr = manager.NewRepoManager(cfg, app.repos, st, app.logger)
	app.graphMgr = manager.NewGraphManager(cfg, app.repos, st, app.logger)
	return app, nil
}

// setupLogger writes structured logs to {root}/logs/repolex.log, falling
// back to stderr when the log file cannot be opened.
func (a *App) setupLogger() *slog.Logger {
	var writers []io.Writer

	if err := os.MkdirAll(a.cfg.LogsPath(), 0o755); err == nil {
		path := filepath.Join(a.cfg.LogsPath(), "repolex.log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			a.logFile = f
			writers = append(writers, f)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: a.cfg.SlogLevel(),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func (a *App) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// Close releases the store and log file.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", slog.String("error", err.Error()))
		}
	}
	a.closeLog()
}

// withApp runs fn with a live App, closing it afterwards.
func withApp(storageRoot *string, fn func(*App) error) error {
	app, err := newApp(*storageRoot)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// splitOrgRepo parses the org/repo argument form.
func splitOrgRepo(arg string) (string, string, error) {
	parts := strings.SplitN(arg, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperror.Validationf("invalid repository identifier %q", arg).
			WithSuggestions("use the organization/repository form, e.g. acme/lib")
	}
	return parts[0], parts[1], nil
}

// confirmOrForce satisfies the destructive-operation gate: force wins,
// otherwise the user is prompted when confirmation is configured.
func confirmOrForce(app *App, force bool, action string) bool {
	if force || !app.cfg.RequireConfirmationForDestructive {
		return true
	}
	fmt.Printf("%s — continue? [y/N] ", action)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// progressPrinter renders stage transitions on stderr.
func progressPrinter() progress.Callback {
	var lastStage progress.Stage
	return func(r progress.Report) {
		if r.Stage == lastStage {
			return
		}
		lastStage = r.Stage
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", r.Percent(), r.Message)
	}
}
