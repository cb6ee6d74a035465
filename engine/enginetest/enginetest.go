// Package enginetest provides a scripted engine.Page and a manual clock
// for browser-free tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/use-agent/anvisa/engine"
)

// Clock is a manual engine.Clock. After advances the clock by d and fires
// at once, so waits finish without real sleeping.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

// NewClock returns a Clock set to a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Slept returns every duration passed to After.
func (c *Clock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// Key is the lookup key a Screen uses for loc.
func Key(loc engine.Locator) string {
	if loc.Pattern != "" {
		return fmt.Sprintf("%s:%s /%s/", loc.Kind, loc.Selector, loc.Pattern)
	}
	return fmt.Sprintf("%s:%s", loc.Kind, loc.Selector)
}

// Screen is one rendered state of a Page.
type Screen struct {
	URL      string
	HTML     string
	Pending  int
	Elements map[string]*Element // keyed by Key

	// Back, when set, is the screen NavigateBack shows instead of the
	// previous history entry.
	Back string
}

// Element is a scripted element.
type Element struct {
	Hidden   bool
	Target   string // screen shown after a click; empty keeps the current one
	ClickErr error

	mu     sync.Mutex
	clicks int
	inputs []string
	page   *Page
}

func (e *Element) Visible(context.Context) (bool, error) {
	return !e.Hidden, nil
}

func (e *Element) Click(context.Context) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	if e.Target != "" {
		e.page.show(e.Target, true)
	}
	return nil
}

func (e *Element) Input(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, text)
	return nil
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Inputs returns the texts typed into the element.
func (e *Element) Inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

// Page is a scripted engine.Page moving between named screens.
type Page struct {
	mu      sync.Mutex
	screens map[string]*Screen
	routes  map[string]string
	current string
	history []string
	shown   []string
	closed  bool

	// NavigateErr, when set, fails every Navigate call.
	NavigateErr error
}

// NewPage creates a Page starting on an empty screen.
func NewPage() *Page {
	p := &Page{
		screens: map[string]*Screen{"blank": {URL: "about:blank"}},
		routes:  make(map[string]string),
		current: "blank",
	}
	return p
}

// AddScreen registers a screen under name.
func (p *Page) AddScreen(name string, s *Screen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Elements == nil {
		s.Elements = make(map[string]*Element)
	}
	for _, el := range s.Elements {
		el.page = p
	}
	p.screens[name] = s
}

// Route makes Navigate(url) show the named screen.
func (p *Page) Route(url, screen string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = screen
}

// Shown lists the screens displayed, in order.
func (p *Page) Shown() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.shown...)
}

// Current returns the name of the displayed screen.
func (p *Page) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close marks the page closed; later calls fail.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) show(name string, push bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if push {
		p.history = append(p.history, p.current)
	}
	p.current = name
	p.shown = append(p.shown, name)
}

func (p *Page) screen() (*Screen, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("page closed")
	}
	s, ok := p.screens[p.current]
	if !ok {
		return nil, fmt.Errorf("unknown screen %q", p.current)
	}
	return s, nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	name, ok := p.routes[url]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no route for %s", url)
	}
	p.show(name, true)
	return nil
}

func (p *Page) NavigateBack(context.Context) error {
	s, err := p.screen()
	if err != nil {
		return err
	}
	if s.Back != "" {
		p.show(s.Back, false)
		return nil
	}

	p.mu.Lock()
	if len(p.history) == 0 {
		p.mu.Unlock()
		return nil
	}
	prev := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.mu.Unlock()

	p.show(prev, false)
	return nil
}

func (p *Page) HTML(context.Context) (string, error) {
	s, err := p.screen()
	if err != nil {
		return "", err
	}
	return s.HTML, nil
}

func (p *Page) URL(context.Context) (string, error) {
	s, err := p.screen()
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

func (p *Page) PendingRequests(context.Context) (int, error) {
	s, err := p.screen()
	if err != nil {
		return 0, err
	}
	return s.Pending, nil
}

func (p *Page) Find(_ context.Context, loc engine.Locator) (engine.Element, error) {
	s, err := p.screen()
	if err != nil {
		return nil, err
	}
	el, ok := s.Elements[Key(loc)]
	if !ok {
		return nil, engine.ErrElementNotFound
	}
	return el, nil
}
