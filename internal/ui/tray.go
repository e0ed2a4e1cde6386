// Package ui is the menu bar presence of the reelcut server.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/library"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = time.Second

// Exports is the part of the orchestrator the tray watches.
type Exports interface {
	Current() *compose.Handle
	Busy() bool
}

// Library lists recorded exports, newest first.
type Library interface {
	List(ctx context.Context, limit int) ([]*library.Entry, error)
}

type Tray struct {
	exports Exports
	library Library
	logger  *slog.Logger

	statusItem *systray.MenuItem
	lastItem   *systray.MenuItem
	cancelItem *systray.MenuItem

	mu sync.Mutex

	onOpenExports func() error
	onQuit        func()
	stop          chan struct{}
}

type TrayConfig struct {
	Exports       Exports
	Library       Library
	Logger        *slog.Logger
	OnOpenExports func() error
	OnQuit        func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		exports:       cfg.Exports,
		library:       cfg.Library,
		logger:        cfg.Logger,
		onOpenExports: cfg.OnOpenExports,
		onQuit:        cfg.OnQuit,
		stop:          make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Reelcut")
	systray.SetTooltip("Reelcut")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current export")
	t.statusItem.Disable()

	t.lastItem = systray.AddMenuItem("Last export: none", "Most recent library entry")
	t.lastItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Cancel the running export")
	t.cancelItem.Disable()

	openItem := systray.AddMenuItem("Open Exports Folder", "Show finished reels")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Reelcut")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		t.refresh()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.cancelItem.ClickedCh:
				t.cancelExport()
			case <-openItem.ClickedCh:
				t.handleOpenExports()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.stop:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	busy := t.exports.Busy()
	t.statusItem.SetTitle(StatusTitle(t.exports.Current(), busy))
	if busy {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}

	if t.library == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
	defer cancel()
	entries, err := t.library.List(ctx, 1)
	if err != nil {
		t.logger.Debug("tray library refresh failed", "error", err)
		return
	}
	var last *library.Entry
	if len(entries) > 0 {
		last = entries[0]
	}
	t.lastItem.SetTitle(LastExportTitle(last))
}

func (t *Tray) cancelExport() {
	h := t.exports.Current()
	if h == nil || !t.exports.Busy() {
		return
	}
	t.logger.Info("export cancel requested from tray", "export_id", h.ID())
	h.Cancel()
}

func (t *Tray) handleOpenExports() {
	if t.onOpenExports != nil {
		if err := t.onOpenExports(); err != nil {
			t.logger.Error("failed to open exports folder", "error", err)
		}
	}
}

func (t *Tray) Quit() {
	close(t.stop)
	systray.Quit()
}

// StatusTitle renders the export state for the status menu item.
func StatusTitle(h *compose.Handle, busy bool) string {
	if h == nil {
		return "Status: Idle"
	}
	state := h.State()
	if busy && state == compose.StateExporting {
		return fmt.Sprintf("Status: Exporting %s%%", humanize.FtoaWithDigits(h.Progress()*100, 0))
	}
	if busy {
		return "Status: " + state.String()
	}
	if res, ok := h.Result(); ok && res.State != compose.StateCompleted {
		return "Status: Idle (last export " + res.State.String() + ")"
	}
	return "Status: Idle"
}

// LastExportTitle summarises the newest library entry.
func LastExportTitle(e *library.Entry) string {
	if e == nil {
		return "Last export: none"
	}
	if e.Status == library.StatusCompleted {
		return fmt.Sprintf("Last export: %s (%s, %s)", e.Title, e.HumanSize(), e.Age())
	}
	return fmt.Sprintf("Last export: %s (%s, %s)", e.Title, e.Status, e.Age())
}
