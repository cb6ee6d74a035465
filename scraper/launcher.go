// Package scraper drives a real Chromium instance through rod and exposes
// it to the navigator as an engine.Page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/egress"
	"github.com/use-agent/anvisa/engine"
	"github.com/use-agent/anvisa/navigator"
	"github.com/ysmood/gson"
)

// Launcher starts one browser per search. Proxies are a launch flag, so
// sessions cannot share a browser when they leave through different
// credentials.
type Launcher struct {
	cfg config.BrowserConfig
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg config.BrowserConfig) *Launcher {
	return &Launcher{cfg: cfg}
}

// Open launches a browser, prepares a single page and returns the session
// owning both. Every setup step is bounded by ctx; once Open returns, the
// browser lives until Session.Close.
func (l *Launcher) Open(ctx context.Context, cred *egress.Credential) (navigator.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ── 1. Launch ─────────────────────────────────────────────────────
	// Context bounds the binary download and the wait for the devtools URL.
	ln := l.newLauncher(cred).Context(ctx)
	controlURL, err := ln.Launch()
	if err != nil {
		if ln.PID() != 0 {
			ln.Kill()
			ln.Cleanup()
		}
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "proxy", proxyServer(cred))

	// The browser's event stream is tied to the context it connects with,
	// so it gets its own lifetime, cut short only while ctx still governs
	// setup.
	life, cancel := context.WithCancel(context.Background())
	detach := context.AfterFunc(ctx, cancel)
	s := &Session{launcher: ln, cancel: cancel}

	// ── 2. Connect ────────────────────────────────────────────────────
	browser := rod.New().Context(life).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to browser: %w", setupErr(ctx, err))
	}
	s.browser = browser

	// ── 3. Proxy authentication ───────────────────────────────────────
	if cred != nil && cred.HasAuth() {
		wait := browser.HandleAuth(cred.Username, cred.Password)
		go func() {
			if err := wait(); err != nil {
				slog.Debug("proxy auth handler stopped", "error", err)
			}
		}()
	}

	// ── 4. Page ───────────────────────────────────────────────────────
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create page: %w", setupErr(ctx, err))
	}
	s.page = page

	if err := l.preparePage(page); err != nil {
		s.Close()
		return nil, setupErr(ctx, err)
	}

	// ── 5. Hijack mount (blocks heavy resources and trackers) ─────────
	s.router = setupHijack(page, l.cfg.BlockedResourceTypes, l.cfg.BlockTrackers)

	if !detach() {
		// ctx ended during setup and life is already cancelled.
		s.Close()
		return nil, ctx.Err()
	}
	return s, nil
}

// setupErr prefers ctx's error when ctx ended, since rod then reports a
// bare context.Canceled from the browser's own context.
func setupErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (l *Launcher) newLauncher(cred *egress.Credential) *launcher.Launcher {
	ln := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if cred != nil {
		ln = ln.Proxy(cred.Server)
	}
	if l.cfg.Locale != "" {
		ln.Set(flags.Flag("lang"), l.cfg.Locale)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))
	return ln
}

// preparePage applies everything that must be in place before the first
// navigation.
func (l *Launcher) preparePage(page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      l.cfg.UserAgent,
		AcceptLanguage: l.cfg.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	if l.cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": l.cfg.AcceptLanguage}),
		}).Call(page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.ViewportWidth,
		Height:            l.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// Session is one launched browser with its single page.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	cancel   context.CancelFunc
}

// Page returns the session page.
func (s *Session) Page() engine.Page {
	return NewPage(s.page)
}

// Close stops request interception, closes the browser and removes its
// profile directory. It is safe to call on a partially opened session.
func (s *Session) Close() error {
	var firstErr error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return firstErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func proxyServer(cred *egress.Credential) string {
	if cred == nil {
		return ""
	}
	return cred.Server
}
