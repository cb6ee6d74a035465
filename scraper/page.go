package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/anvisa/engine"
)

// pendingRequestsJS counts AngularJS requests in flight. Pages without
// AngularJS report zero.
const pendingRequestsJS = `() => {
	try {
		const root = document.querySelector("[ng-app]") || document.body;
		const injector = window.angular && window.angular.element(root).injector();
		if (!injector) return 0;
		return injector.get("$http").pendingRequests.length;
	} catch (e) {
		return 0;
	}
}`

// Page adapts a rod page to engine.Page. Every call binds ctx to the
// underlying page so deadlines propagate to the CDP calls.
type Page struct {
	page *rod.Page
}

// NewPage wraps page.
func NewPage(page *rod.Page) *Page {
	return &Page{page: page}
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return browserErr(err)
	}
	if err := pg.WaitLoad(); err != nil {
		return browserErr(err)
	}
	return nil
}

// NavigateBack goes one step back in the page history.
func (p *Page) NavigateBack(ctx context.Context) error {
	return browserErr(p.page.Context(ctx).NavigateBack())
}

// HTML returns the rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	return html, browserErr(err)
}

// URL returns the current location, including the hash route.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", browserErr(err)
	}
	return info.URL, nil
}

// PendingRequests returns the number of AngularJS requests in flight.
func (p *Page) PendingRequests(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(pendingRequestsJS)
	if err != nil {
		return 0, browserErr(err)
	}
	return res.Value.Int(), nil
}

// Find resolves loc against the current DOM without waiting for it to
// appear; waiting is the caller's concern.
func (p *Page) Find(ctx context.Context, loc engine.Locator) (engine.Element, error) {
	pg := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	var (
		el  *rod.Element
		err error
	)
	switch loc.Kind {
	case engine.KindCSS:
		el, err = pg.Element(loc.Selector)
	case engine.KindText:
		el, err = pg.ElementR(loc.Selector, loc.Pattern)
	case engine.KindXPath:
		el, err = pg.ElementX(loc.Selector)
	case engine.KindJS:
		el, err = pg.ElementByJS(rod.Eval(loc.Selector))
	default:
		return nil, fmt.Errorf("unknown locator kind %q", loc.Kind)
	}

	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return nil, engine.ErrElementNotFound
	}
	if err != nil {
		return nil, browserErr(err)
	}
	return &Element{el: el}, nil
}

// Element adapts a rod element to engine.Element.
type Element struct {
	el *rod.Element
}

// Visible reports whether the element is rendered and not hidden.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

// Click clicks the element like a user would. When another node covers
// it, the click is dispatched from script instead.
func (e *Element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	err := el.Click(proto.InputMouseButtonLeft, 1)

	var covered *rod.CoveredError
	var noPointer *rod.NoPointerEventsError
	if errors.As(err, &covered) || errors.As(err, &noPointer) {
		_, err = el.Eval(`() => this.click()`)
	}
	return browserErr(err)
}

// Input replaces the element's value with text.
func (e *Element) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return browserErr(err)
	}
	return browserErr(el.Input(text))
}

func browserErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("browser: %w", err)
}
