package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by Page.Find when nothing matches a
// locator, and by the Orchestrator when every locator of a chain failed on
// every attempt.
var ErrElementNotFound = errors.New("element not found")

// Page is the browser surface the navigation code drives. Implementations
// must not wait for elements to appear: Find answers for the current DOM
// and waiting is done by a Waiter.
type Page interface {
	// Navigate loads url and returns once the navigation has committed.
	Navigate(ctx context.Context, url string) error

	// NavigateBack goes one entry back in the session history.
	NavigateBack(ctx context.Context) error

	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)

	// URL returns the current location, including the hash route.
	URL(ctx context.Context) (string, error)

	// PendingRequests reports the number of in-flight application
	// requests. Pages without such a counter report 0.
	PendingRequests(ctx context.Context) (int, error)

	// Find resolves loc against the current DOM.
	Find(ctx context.Context, loc Locator) (Element, error)
}

// Element is one resolved node of a Page.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
}

// Kind names the strategy a Locator uses to find an element.
type Kind string

const (
	// KindCSS matches a CSS selector.
	KindCSS Kind = "css"
	// KindText matches a CSS selector whose text content matches Pattern.
	KindText Kind = "text"
	// KindXPath matches an XPath expression.
	KindXPath Kind = "xpath"
	// KindJS evaluates Selector as a JS expression returning an element.
	KindJS Kind = "js"
)

// Locator is one way of finding a logical UI element.
type Locator struct {
	Name     string `yaml:"name"`
	Kind     Kind   `yaml:"kind"`
	Selector string `yaml:"selector"`
	Pattern  string `yaml:"pattern,omitempty"`
}

// String returns the locator name, or a kind:selector description.
func (l Locator) String() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Pattern != "" {
		return fmt.Sprintf("%s:%s /%s/", l.Kind, l.Selector, l.Pattern)
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Selector)
}

// CSS builds a KindCSS locator.
func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Selector: selector}
}

// Text builds a KindText locator.
func Text(selector, pattern string) Locator {
	return Locator{Kind: KindText, Selector: selector, Pattern: pattern}
}

// JS builds a KindJS locator from a JS expression.
func JS(expr string) Locator {
	return Locator{Kind: KindJS, Selector: expr}
}

// Chain is an ordered list of alternative locators for the same element.
// Earlier entries are preferred.
type Chain []Locator

// Action acts on a located element.
type Action func(ctx context.Context, el Element) error

// Click returns an Action that clicks the element.
func Click() Action {
	return func(ctx context.Context, el Element) error {
		return el.Click(ctx)
	}
}

// Input returns an Action that replaces the element's value with text.
func Input(text string) Action {
	return func(ctx context.Context, el Element) error {
		return el.Input(ctx, text)
	}
}
