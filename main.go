package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/JohnDimou/claude-usage-bar/internal/applog"
	"github.com/JohnDimou/claude-usage-bar/internal/cli"
	"github.com/JohnDimou/claude-usage-bar/internal/config"
	"github.com/JohnDimou/claude-usage-bar/internal/events"
	"github.com/JohnDimou/claude-usage-bar/internal/history"
	"github.com/JohnDimou/claude-usage-bar/internal/manager"
	"github.com/JohnDimou/claude-usage-bar/internal/notify"
	"github.com/JohnDimou/claude-usage-bar/internal/scheduler"
	"github.com/JohnDimou/claude-usage-bar/internal/ui"
	"github.com/JohnDimou/claude-usage-bar/internal/usage"
	"github.com/JohnDimou/claude-usage-bar/internal/webserver"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		return statusCmd(nil)
	}
	switch os.Args[1] {
	case "status":
		return statusCmd(os.Args[2:])
	case "watch":
		return watchCmd()
	case "serve":
		return serveCmd()
	case "history":
		return historyCmd(os.Args[2:])
	case "hashpw":
		return hashpwCmd()
	case "version", "--version", "-v":
		fmt.Println("claude-usage-bar " + Version)
		return 0
	case "help", "--help", "-h":
		printHelp()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "claude-usage-bar: unknown command %q\n", os.Args[1])
		printHelp()
		return 1
	}
}

// newFetcher applies config overrides on top of the default search lists.
func newFetcher(cfg config.Config, logger *slog.Logger) *usage.Fetcher {
	f := usage.NewFetcher(logger)
	if cfg.InterpreterPath != "" {
		f.Interpreters = []string{cfg.InterpreterPath}
	}
	if cfg.ScriptPath != "" {
		f.ScriptPaths = []string{cfg.ScriptPath}
	}
	if d := cfg.FetchTimeout(); d > 0 {
		f.Timeout = d
	}
	return f
}

func loadConfig() config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	return cfg
}

func openHistory(cfg config.Config) (*history.DB, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}
	store, err := history.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	if cfg.History.KeepDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.KeepDays)
		store.PruneBefore(cutoff)
	}
	return store, nil
}

func statusCmd(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "output JSON")
	plainMode := fs.Bool("plain", false, "plain text (no color)")
	fs.Parse(args)

	cfg := loadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	return cli.Status(newFetcher(cfg, logger), *jsonMode, *plainMode)
}

func historyCmd(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 20, "number of snapshots to show")
	fs.Parse(args)

	cfg := loadConfig()
	cfg.History.Enabled = true // listing always reads the store
	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claude-usage-bar: %v\n", err)
		return 1
	}
	defer store.Close()
	return cli.History(store, *n)
}

func watchCmd() int {
	cfg := loadConfig()

	logger, logCloser, err := applog.Init(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default()
	} else {
		defer logCloser.Close()
	}

	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	var w *ui.Watch
	m := manager.New(newFetcher(cfg, logger), store,
		notify.New(notify.Config(cfg.Notifications), logger), nil,
		func() {
			if w != nil {
				w.Reload()
			}
		}, logger)
	w = ui.NewWatch(m, store)

	if err := w.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	m.Wait()
	return 0
}

// broadcasterFunc adapts a closure to events.Broadcaster so the manager and
// the webserver can be constructed in either order.
type broadcasterFunc func(events.Event)

func (f broadcasterFunc) Broadcast(e events.Event) { f(e) }

func serveCmd() int {
	cfg := loadConfig()

	if err := config.EnsureJWTSecret(config.DefaultPath(), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist JWT secret: %v\n", err)
	}

	logger, logCloser, err := applog.Init(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default()
	} else {
		defer logCloser.Close()
	}

	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not open history db: %v\n", err)
		return 1
	}
	if store != nil {
		defer store.Close()
	}

	var srv *webserver.Server
	m := manager.New(newFetcher(cfg, logger), store,
		notify.New(notify.Config(cfg.Notifications), logger),
		broadcasterFunc(func(e events.Event) {
			if srv != nil {
				srv.Broadcast(e)
			}
		}), nil, logger)

	srv = webserver.New(m, store, webserver.Config{
		Enabled: cfg.Server.Enabled,
		Port:    cfg.Server.Port,
		Host:    cfg.Server.Host,
		Auth:    webserver.AuthConfig(cfg.Server.Auth),
	}, logger)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: could not start status server: %v\n", err)
		return 1
	}

	sched := scheduler.New(m.TriggerFetch, cfg.RefreshInterval(), cfg.RefreshOnOpen, logger)
	sched.Start()
	defer sched.Stop()

	// Scheduler settings follow config edits live; fetcher and server
	// settings take effect on restart.
	watcher, err := config.Watch(config.DefaultPath(), func(c config.Config) {
		sched.SetInterval(c.RefreshInterval())
		sched.SetRefreshOnOpen(c.RefreshOnOpen)
	}, logger)
	if err != nil {
		logger.Warn("config watch unavailable", "err", err)
	} else {
		defer watcher.Close()
	}

	logger.Info("serve: started",
		"version", Version,
		"interval", cfg.RefreshInterval(),
		"server_enabled", cfg.Server.Enabled,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("serve: shutting down")
	m.Wait()
	return 0
}

func hashpwCmd() int {
	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(string(hash))
	return 0
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: claude-usage-bar [command] [flags]

Commands:
  status    Fetch and show current usage (default)
  watch     Full-screen terminal dashboard
  serve     Run the background refresher and status API
  history   List recent stored snapshots
  hashpw    Generate a bcrypt hash for the status server auth config
  version   Show version
  help      Show this help

Status flags:
  --json    Output as JSON
  --plain   Plain text, no color codes

History flags:
  -n N      Number of snapshots to show (default 20)`)
}
