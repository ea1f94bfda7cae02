// Command sosfinder watches a camera for the closed-hand SOS signal and
// raises one alert per episode on every configured channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/sosfinder/internal/app"
	"github.com/ayusman/sosfinder/internal/config"
	"github.com/ayusman/sosfinder/internal/logging"
	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/server"
	"github.com/ayusman/sosfinder/internal/store"
	"github.com/ayusman/sosfinder/internal/tray"
)

func main() {
	configDir := flag.String("config", ".", "directory containing sosfinder.yaml")
	start := flag.Bool("start", true, "start detection immediately")
	flag.Parse()

	if err := run(*configDir, *start); err != nil {
		fmt.Fprintf(os.Stderr, "sosfinder: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string, autoStart bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logging.Install(logger)

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Data.Dir, "sosfinder.db")
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	a := app.New(app.Config{
		Settings: cfg,
		Store:    st,
		Metrics:  m,
		Logger:   logger,
	})
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "error", err)
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.Data.Dir)
	}
	if staticDir != "" {
		logger.Info("serving dashboard", "dir", staticDir)
	} else {
		logger.Info("serving built-in dashboard")
	}

	srvCfg := server.Config{
		StaticDir: staticDir,
		App:       a,
		Store:     st,
		Metrics:   m,
		Logger:    logger,
	}
	if lvl, _ := logging.ParseLevel(cfg.Log.Level); lvl <= slog.LevelDebug {
		srvCfg.AccessLog = os.Stderr
	}
	srv := server.New(srvCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if autoStart {
		// The API stays up so the session can be retried from the dashboard.
		if err := a.Start(); err != nil {
			logger.Error("detection not started", "error", err)
		}
	}

	if !cfg.Tray.Enabled {
		return serve(ctx, srv, cfg.Server.Addr)
	}

	// systray must own the main goroutine.
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, srv, cfg.Server.Addr)
	}()

	t := tray.New(a)
	t.OnDashboard(func() { openBrowser(dashboardURL(cfg.Server.Addr), logger) })
	t.OnError(func(err error) { logger.Error("detection not started", "error", err) })
	t.OnQuit(stop)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()

	stop()
	return <-errCh
}

func serve(ctx context.Context, srv *server.Server, addr string) error {
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("could not open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}

// findWebDir searches for the dashboard in common locations.
// It checks: "web", "../web", "../../web", and dataDir/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
