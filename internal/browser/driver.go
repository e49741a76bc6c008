package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"saintagent/internal/logging"
)

// RodDriver launches persistent-profile Chromium contexts through rod.
// One Chromium process per session: the portal binds its login to the
// profile, so sessions cannot share a browser instance.
type RodDriver struct {
	Headless          bool
	NavigationTimeout time.Duration
}

// NewRodDriver creates a driver with the given launch options.
func NewRodDriver(headless bool, navTimeout time.Duration) *RodDriver {
	if navTimeout == 0 {
		navTimeout = 30 * time.Second
	}
	return &RodDriver{Headless: headless, NavigationTimeout: navTimeout}
}

// Launch starts Chromium rooted at profileDir and connects to it.
func (d *RodDriver) Launch(ctx context.Context, profileDir string) (BrowserContext, error) {
	l := launcher.New().
		UserDataDir(profileDir).
		Headless(d.Headless).
		// The portal nests its work area in cross-origin frames; without
		// these flags the inner frame is not reachable from the outer page.
		Set("disable-web-security").
		Set("disable-features", "IsolateOrigins,SitePerProcess")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	logging.SessionDebug("chromium launched (profile=%s)", profileDir)
	return &rodContext{browser: b, launcher: l, navTimeout: d.NavigationTimeout}, nil
}

// rodContext wraps one Chromium process plus its working page.
type rodContext struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	navTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// ActivePage attaches the first open page or opens a new one.
func (c *rodContext) ActivePage() (*rod.Page, error) {
	pages, err := c.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(pages) > 0 {
		return pages.First(), nil
	}
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page, nil
}

// Close shuts the browser down and reaps the Chromium process.
func (c *rodContext) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.browser.Close()
		c.launcher.Kill()
	})
	return c.closeErr
}
