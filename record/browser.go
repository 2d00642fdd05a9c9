package record

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Manager owns the browser process behind a Recorder: lazy launch, page
// creation with the configured stealth level, and relaunch after the
// configured number of recordings.
type Manager struct {
	cfg    *Config
	logger *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	lnch     *launcher.Launcher
	sessions int
	closed   bool
}

// NewManager validates the configured browser binary and returns a manager.
// The browser itself is launched on first use.
func NewManager(cfg *Config, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Browser == "" {
		return nil, &ErrNoBrowser{}
	}
	if _, err := os.Stat(cfg.Browser); err != nil {
		return nil, &ErrNoBrowser{Path: cfg.Browser}
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// Page returns a fresh page, launching or recycling the browser as needed.
func (m *Manager) Page() (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("record: manager is closed")
	}
	if m.browser != nil && m.sessions >= m.cfg.RecycleAfter {
		m.logger.Info("record: recycling browser", "sessions", m.sessions)
		m.cleanupLocked()
	}
	if m.browser == nil {
		if err := m.launchLocked(); err != nil {
			return nil, err
		}
	}
	m.sessions++
	if m.cfg.Stealth {
		return stealth.Page(m.browser)
	}
	return m.browser.Page(proto.TargetCreateTarget{URL: ""})
}

func (m *Manager) launchLocked() error {
	l := launcher.New().
		Bin(m.cfg.Browser).
		Headless(!m.cfg.Headful).
		Set("disable-blink-features", "AutomationControlled")
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("record: launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("record: connect browser: %w", err)
	}
	m.lnch = l
	m.browser = b
	m.sessions = 0
	m.logger.Info("record: browser launched",
		"bin", m.cfg.Browser, "headful", m.cfg.Headful, "stealth", m.cfg.Stealth)
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.logger.Warn("record: browser close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// Close shuts the browser down. The manager cannot be reused afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}
