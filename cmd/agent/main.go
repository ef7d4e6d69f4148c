package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuedeck/cuedeck-agent/internal/api"
	"github.com/cuedeck/cuedeck-agent/internal/config"
	"github.com/cuedeck/cuedeck-agent/internal/controller"
	"github.com/cuedeck/cuedeck-agent/internal/db"
	"github.com/cuedeck/cuedeck-agent/internal/engine"
	"github.com/cuedeck/cuedeck-agent/internal/events"
	"github.com/cuedeck/cuedeck-agent/internal/logging"
	"github.com/cuedeck/cuedeck-agent/internal/media"
	"github.com/cuedeck/cuedeck-agent/internal/session"
	"github.com/cuedeck/cuedeck-agent/internal/state"
	"github.com/cuedeck/cuedeck-agent/internal/ui"
	"github.com/cuedeck/cuedeck-agent/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cuedeck agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := state.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	controlURL := fmt.Sprintf("http://%s:%d/?token=%s", outboundIP(), cfg.Port(), authToken)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  CUEDECK AGENT v%-7s                   ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API Port:   %-45d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, doctor, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	sess := session.New(eng, logger)

	hub := events.NewHub(logger)

	descWatcher := buildWatcher(cfg, logger)
	descWatcher.OnChange(func(path string, event watcher.EventType) {
		logger.Warn("descriptor changed outside the agent",
			"path", logging.SanitizePath(path), "event", event.String())
		hub.Broadcast("descriptor_changed", map[string]any{
			"path":  path,
			"event": event.String(),
		})
	})

	sink := &fanoutBroadcaster{hub: hub}
	ctrl := controller.New(sess, repo, logger, sink)
	sink.onProject = func(path string) {
		if err := descWatcher.Watch(ctx, path); err != nil {
			logger.Warn("cannot watch descriptor", "error", err)
		}
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Controller: ctrl,
		Repository: repo,
		Media:      media.NewServer(logger),
		Hub:        hub,
		Doctor:     doctor,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    config.Version,
		ControlURL: controlURL,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	tray := ui.NewTray(ui.TrayConfig{
		Controller: ctrl,
		ControlURL: controlURL,
		Logger:     logger,
		OnQuit: func() {
			close(quitCh)
		},
	})
	sink.tray = tray

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := sess.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return apiServer.Start()
	})

	go tray.Run()

	<-quitCh

	logger.Info("initiating graceful shutdown")
	descWatcher.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	if err := g.Wait(); err != nil {
		logger.Error("background worker error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildEngine selects the configured playback engine and its doctor. The
// stub engine is for development machines without a player installed.
func buildEngine(cfg config.Config, logger *slog.Logger) (session.Engine, *engine.Doctor, error) {
	if cfg.Engine() == "stub" {
		logger.Info("using stub playback engine")
		return engine.NewStub(), nil, nil
	}

	doctor := engine.NewDoctor(cfg.PlayerBin(), logger)

	engCfg := engine.DefaultConfig(cfg.DataDir(), logger)
	engCfg.BinaryPath = cfg.PlayerBin()
	engCfg.StartTimeout = cfg.EngineStartTimeout()

	eng, err := engine.NewMPV(engCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start playback engine: %w", err)
	}
	return eng, doctor, nil
}

func buildWatcher(cfg config.Config, logger *slog.Logger) watcher.Watcher {
	if !cfg.WatchDescriptor() {
		return watcher.NewStubWatcher(logger)
	}
	return watcher.NewPollWatcher(logger)
}

// fanoutBroadcaster forwards controller events to the WebSocket hub and
// mirrors the ones the tray shows. The descriptor watcher follows the
// active project through the project event.
type fanoutBroadcaster struct {
	hub       *events.Hub
	tray      *ui.Tray
	onProject func(path string)
}

func (f *fanoutBroadcaster) Broadcast(event string, payload any) {
	f.hub.Broadcast(event, payload)

	data, _ := payload.(map[string]any)
	switch event {
	case "project":
		if f.onProject != nil {
			if path, ok := data["path"].(string); ok {
				f.onProject(path)
			}
		}
		if f.tray != nil {
			if name, ok := data["name"].(string); ok {
				f.tray.UpdateProject(name, true)
			}
		}
	case "breakpoints":
		if f.tray != nil {
			if saved, ok := data["saved"].(bool); ok {
				f.tray.UpdateSaved(saved)
			}
		}
	case "state":
		if f.tray != nil {
			if state, ok := data["state"].(string); ok {
				f.tray.UpdateState(state)
			}
		}
	}
}

func ensureDeviceID(repo state.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo state.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}

// outboundIP finds the LAN address remotes should pair against.
func outboundIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
