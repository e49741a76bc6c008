// Package portal drives the university portal through a browser session.
//
// The portal renders its working surface as outer page -> a stable container
// iframe -> a nested work-area iframe, and both frames are torn down and
// recreated on every navigation. The client therefore re-resolves the frame
// chain on every interaction and holds no cross-call frame cache; caching a
// frame handle across navigations is unsafe.
package portal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"saintagent/internal/browser"
	"saintagent/internal/logging"
)

// Fixed portal selectors. The container and work-area ids are stable across
// portal releases; everything inside the work area is regenerated per
// navigation.
const (
	containerFrameSelector = "iframe#contentAreaFrame"
	workAreaSelector       = "#isolatedWorkArea"
	decorativeSelector     = "#sapur-aria" // accessibility-only duplicate region

	loginButtonSelector = "#s_btnLogin"
	loginIDSelector     = "#userid"
	loginPWSelector     = "#pwd"
	loginSubmitXPath    = `//*[@id="sLogin"]/div/div[1]/form/div/div[2]`
)

// Config holds interaction timing. Every wait is bounded; there is no
// unbounded wait anywhere in the automation path.
type Config struct {
	EntryURL          string
	FrameTimeout      time.Duration // frame resolution + load-state wait
	ActionTimeout     time.Duration // selector wait, click, type
	NavigationTimeout time.Duration
	// SettleInterval is slept after the network-level load event because
	// the portal's client-side script keeps mutating the DOM briefly
	// afterwards. A quirk of the target system, not a load-state contract.
	SettleInterval time.Duration
}

// DefaultConfig returns timings tuned against the target portal.
func DefaultConfig() Config {
	return Config{
		EntryURL:          "https://saint.ssu.ac.kr/irj/portal",
		FrameTimeout:      8 * time.Second,
		ActionTimeout:     4 * time.Second,
		NavigationTimeout: 30 * time.Second,
		SettleInterval:    2 * time.Second,
	}
}

// Client exposes primitive, re-resolved operations against one session's
// page. Callers must not issue two concurrent operations against the same
// session; the portal assumes exclusive use of one page at a time.
type Client struct {
	cfg      Config
	sessions *browser.Store
}

// NewClient creates a portal client over the given session store.
func NewClient(cfg Config, sessions *browser.Store) *Client {
	return &Client{cfg: cfg, sessions: sessions}
}

// page fetches the session's active page or fails.
func (c *Client) page(s *browser.Session) (*rod.Page, error) {
	return s.Page()
}

// ResolveFrame locates the nested work-area frame and waits for it to reach
// its loaded state. Returns ErrFrameNotFound if any resolution step yields
// no element and ErrFrameTimeout if the load-state wait expires.
func (c *Client) ResolveFrame(ctx context.Context, s *browser.Session) (*rod.Page, error) {
	page, err := c.page(s)
	if err != nil {
		return nil, err
	}

	container, err := page.Context(ctx).Timeout(c.cfg.FrameTimeout).Element(containerFrameSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: container %s: %v", ErrFrameNotFound, containerFrameSelector, err)
	}
	containerFrame, err := container.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: container content frame: %v", ErrFrameNotFound, err)
	}

	workArea, err := containerFrame.Timeout(c.cfg.FrameTimeout).Element(workAreaSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: work area %s: %v", ErrFrameNotFound, workAreaSelector, err)
	}
	workFrame, err := workArea.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: work area content frame: %v", ErrFrameNotFound, err)
	}

	if err := workFrame.Timeout(c.cfg.FrameTimeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameTimeout, err)
	}

	logging.PortalDebug("resolved work-area frame for %s", s.Key())
	return workFrame, nil
}

// SelectMenu finds a navigational link by its accessible name, clicks it and
// waits for the resulting navigation to settle. Re-invoking with the same
// title re-navigates; there is no "already on this screen" detection.
func (c *Client) SelectMenu(ctx context.Context, s *browser.Session, menuTitle string) error {
	page, err := c.page(s)
	if err != nil {
		return err
	}

	pattern := "^" + regexp.QuoteMeta(menuTitle) + "$"
	link, err := page.Context(ctx).Timeout(c.cfg.ActionTimeout).ElementR("a", pattern)
	if err != nil {
		return fmt.Errorf("%w: menu link %q: %v", ErrElementNotFound, menuTitle, err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: menu %q: %v", ErrClickTimeout, menuTitle, err)
	}

	if err := page.Timeout(c.cfg.NavigationTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: after menu %q: %v", ErrFrameTimeout, menuTitle, err)
	}
	if err := c.settle(ctx); err != nil {
		return err
	}

	c.sessions.Touch(s)
	logging.Portal("selected menu %q (session=%s)", menuTitle, s.Key())
	return nil
}

// ReadContent resolves the frame and returns the body's visible text with
// the decorative accessibility region stripped out.
func (c *Client) ReadContent(ctx context.Context, s *browser.Session) (string, error) {
	frame, err := c.ResolveFrame(ctx, s)
	if err != nil {
		return "", err
	}

	body, err := frame.Timeout(c.cfg.ActionTimeout).Element("body")
	if err != nil {
		return "", fmt.Errorf("%w: body: %v", ErrElementNotFound, err)
	}
	text, err := body.Text()
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}

	if has, decorative, err := frame.Has(decorativeSelector); err == nil && has {
		if dupText, err := decorative.Text(); err == nil {
			text = stripDecorative(text, dupText)
		}
	}

	c.sessions.Touch(s)
	return text, nil
}

// Click resolves the frame, waits for the selector and clicks it.
func (c *Client) Click(ctx context.Context, s *browser.Session, selector string) error {
	frame, err := c.ResolveFrame(ctx, s)
	if err != nil {
		return err
	}

	el, err := frame.Timeout(c.cfg.ActionTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	if err := el.Timeout(c.cfg.ActionTimeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrClickTimeout, selector, err)
	}

	c.sessions.Touch(s)
	logging.PortalDebug("clicked %s (session=%s)", selector, s.Key())
	return nil
}

// TypeText simulates keystrokes into whatever element currently holds
// focus. The caller is responsible for focusing first via Click.
func (c *Client) TypeText(ctx context.Context, s *browser.Session, content string) error {
	page, err := c.page(s)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(c.cfg.ActionTimeout).InsertText(content); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	c.sessions.Touch(s)
	return nil
}

// ReadValue resolves the frame, waits for the selector and returns its
// value attribute. Used by scheduled extractions (for example the GPA
// field, which the portal renders as a read-only input).
func (c *Client) ReadValue(ctx context.Context, s *browser.Session, selector string) (string, error) {
	frame, err := c.ResolveFrame(ctx, s)
	if err != nil {
		return "", err
	}

	el, err := frame.Timeout(c.cfg.ActionTimeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	val, err := el.Attribute("value")
	if err != nil {
		return "", fmt.Errorf("read value of %s: %w", selector, err)
	}
	if val == nil {
		return "", nil
	}
	c.sessions.Touch(s)
	return *val, nil
}

// Login navigates to the portal entry point and authenticates. Idempotent:
// if the login button is absent the session is already authenticated and
// Login returns success immediately.
func (c *Client) Login(ctx context.Context, s *browser.Session, id, secret string) error {
	page, err := c.page(s)
	if err != nil {
		return err
	}

	if err := page.Context(ctx).Timeout(c.cfg.NavigationTimeout).Navigate(c.cfg.EntryURL); err != nil {
		return fmt.Errorf("%w: navigate entry: %v", ErrLoginFailed, err)
	}
	if err := page.Timeout(c.cfg.NavigationTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: entry load: %v", ErrLoginFailed, err)
	}

	has, _, err := page.Has(loginButtonSelector)
	if err != nil {
		return fmt.Errorf("%w: probe login button: %v", ErrLoginFailed, err)
	}
	if !has {
		logging.Portal("session %s already authenticated", s.Key())
		c.sessions.Touch(s)
		return nil
	}

	steps := []struct {
		desc string
		fn   func() error
	}{
		{"open login form", func() error { return c.clickOnPage(ctx, page, loginButtonSelector) }},
		{"focus id field", func() error { return c.clickOnPage(ctx, page, loginIDSelector) }},
		{"type id", func() error { return page.InsertText(id) }},
		{"focus password field", func() error { return c.clickOnPage(ctx, page, loginPWSelector) }},
		{"type password", func() error { return page.InsertText(secret) }},
		{"submit", func() error { return c.clickXPath(ctx, page, loginSubmitXPath) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLoginFailed, step.desc, err)
		}
	}

	if err := page.Timeout(c.cfg.NavigationTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: post-login load: %v", ErrLoginFailed, err)
	}
	if err := c.settle(ctx); err != nil {
		return err
	}
	// The portal serves a half-initialized shell right after login; a
	// reload lands on the fully initialized home screen.
	if err := page.Timeout(c.cfg.NavigationTimeout).Reload(); err != nil {
		return fmt.Errorf("%w: post-login reload: %v", ErrLoginFailed, err)
	}
	if err := page.Timeout(c.cfg.NavigationTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: post-reload load: %v", ErrLoginFailed, err)
	}

	c.sessions.Touch(s)
	logging.Portal("session %s logged in", s.Key())
	return nil
}

func (c *Client) clickOnPage(ctx context.Context, page *rod.Page, selector string) error {
	el, err := page.Context(ctx).Timeout(c.cfg.ActionTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrClickTimeout, selector, err)
	}
	return nil
}

func (c *Client) clickXPath(ctx context.Context, page *rod.Page, xpath string) error {
	el, err := page.Context(ctx).Timeout(c.cfg.ActionTimeout).ElementX(xpath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, xpath, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrClickTimeout, xpath, err)
	}
	return nil
}

// settle sleeps the configured settle interval, honoring cancellation.
func (c *Client) settle(ctx context.Context) error {
	if c.cfg.SettleInterval <= 0 {
		return nil
	}
	t := time.NewTimer(c.cfg.SettleInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stripDecorative removes one copy of the decorative region's text from the
// body text and collapses the blank lines removal leaves behind. Only one
// occurrence goes: the region duplicates real content, and both copies read
// the same.
func stripDecorative(body, decorative string) string {
	if decorative == "" {
		return body
	}
	out := strings.Replace(body, decorative, "", 1)
	out = strings.ReplaceAll(out, "\n\n", "\n")
	return strings.TrimSpace(out)
}
