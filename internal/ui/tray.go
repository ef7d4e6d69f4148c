// Package ui is the agent's local surface: a system tray with transport
// controls and pairing helpers. The real front of the product is the
// HTTP/WebSocket API; the tray exists so the operator can drive the show
// without a remote connected.
package ui

import (
	"log/slog"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"

	"github.com/cuedeck/cuedeck-agent/internal/controller"
)

type Tray struct {
	controller *controller.Controller
	controlURL string
	logger     *slog.Logger

	statusItem  *systray.MenuItem
	projectItem *systray.MenuItem

	mu          sync.Mutex
	projectName string

	onQuit func()
}

type TrayConfig struct {
	Controller *controller.Controller
	ControlURL string
	Logger     *slog.Logger
	OnQuit     func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		controller: cfg.Controller,
		controlURL: cfg.ControlURL,
		logger:     cfg.Logger,
		onQuit:     cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cuedeck")
	systray.SetTooltip("Cuedeck Agent")

	t.statusItem = systray.AddMenuItem("Stopped", "Playback state")
	t.statusItem.Disable()

	t.projectItem = systray.AddMenuItem("No project", "Open project")
	t.projectItem.Disable()

	systray.AddSeparator()

	playPauseItem := systray.AddMenuItem("Play/Pause", "Toggle playback")
	startItem := systray.AddMenuItem("Start Presentation", "Play from the top")
	saveItem := systray.AddMenuItem("Save Project", "Write breakpoints to the descriptor")

	systray.AddSeparator()

	copyURLItem := systray.AddMenuItem("Copy Control URL", "Copy the remote pairing URL")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cuedeck Agent")

	go func() {
		for {
			select {
			case <-playPauseItem.ClickedCh:
				if err := t.controller.Session().PlayPause(); err != nil {
					t.logger.Warn("play/pause from tray failed", "error", err)
				}
			case <-startItem.ClickedCh:
				if err := t.controller.StartPresentation(false); err != nil {
					t.logger.Warn("start presentation from tray failed", "error", err)
				}
			case <-saveItem.ClickedCh:
				if err := t.controller.SaveProject(); err != nil {
					t.logger.Warn("save from tray failed", "error", err)
				}
			case <-copyURLItem.ClickedCh:
				t.handleCopyURL()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleCopyURL() {
	if err := clipboard.WriteAll(t.controlURL); err != nil {
		t.logger.Warn("cannot copy control URL", "error", err)
		return
	}
	t.logger.Info("control URL copied to clipboard")
}

// UpdateState reflects the playback state in the tray.
func (t *Tray) UpdateState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem != nil {
		t.statusItem.SetTitle(state)
	}
}

// UpdateProject shows the open project's name, with a marker for unsaved
// breakpoint edits.
func (t *Tray) UpdateProject(name string, saved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.projectName = name
	t.setProjectTitle(saved)
}

// UpdateSaved refreshes the unsaved marker for the current project.
func (t *Tray) UpdateSaved(saved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setProjectTitle(saved)
}

func (t *Tray) setProjectTitle(saved bool) {
	if t.projectItem == nil || t.projectName == "" {
		return
	}
	title := t.projectName
	if !saved {
		title += " *"
	}
	t.projectItem.SetTitle(title)
}

func (t *Tray) Quit() {
	systray.Quit()
}
