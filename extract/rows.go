package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultMaxRows caps how many listing rows are returned.
const DefaultMaxRows = 50

// RowIdentity is a positional reference to one listing row. It is only
// valid for the render it was computed from and must be recomputed after
// every return to the listing.
type RowIdentity struct {
	Ordinal   int    // position in the deduplicated sequence
	RowIndex  int    // index of the row among all listing rows
	CellIndex int    // index of the primary action cell among the row's td cells
	Label     string // text of the primary action cell
}

// RowOptions describes the listing markup.
type RowOptions struct {
	// RowSelector matches every structural row of the listing.
	RowSelector string // default: "tbody tr"

	// CellSelector matches the clickable cells that open a detail view.
	CellSelector string // default: "td[ng-click]"

	// StatusTokens is the enumeration an anchor cell's text is drawn from.
	StatusTokens []string

	MaxRows int // default: DefaultMaxRows
}

func (o RowOptions) withDefaults() RowOptions {
	if o.RowSelector == "" {
		o.RowSelector = "tbody tr"
	}
	if o.CellSelector == "" {
		o.CellSelector = "td[ng-click]"
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	return o
}

// LocateRows returns one RowIdentity per logical listing row, in DOM order.
//
// Every row exposes several clickable cells wired to the same detail view,
// so each row is reduced to one canonical anchor: its cell holding a known
// status token when it has one, otherwise its first clickable cell. The
// choice is made per row, so a row whose status is outside the token list
// is still returned. Rows are deduplicated by node identity and represented
// by their first clickable cell.
func LocateRows(rendered string, opts RowOptions) ([]RowIdentity, error) {
	opts = opts.withDefaults()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	rowIndex := make(map[*html.Node]int)
	doc.Find(opts.RowSelector).Each(func(i int, s *goquery.Selection) {
		rowIndex[s.Get(0)] = i
	})

	tokens := make(map[string]struct{}, len(opts.StatusTokens))
	for _, t := range opts.StatusTokens {
		tokens[Fold(t)] = struct{}{}
	}

	// Group clickable cells by enclosing row, keeping first-seen order.
	var order []*html.Node
	rowCells := make(map[*html.Node]*goquery.Selection)
	doc.Find(opts.CellSelector).Each(func(_ int, cell *goquery.Selection) {
		row := cell.Closest("tr")
		if row.Length() == 0 {
			return
		}
		node := row.Get(0)
		if _, ok := rowIndex[node]; !ok {
			return
		}
		if prev, ok := rowCells[node]; ok {
			rowCells[node] = prev.AddSelection(cell)
			return
		}
		order = append(order, node)
		rowCells[node] = cell
	})

	identities := make([]RowIdentity, 0, min(len(order), opts.MaxRows))
	for _, node := range order {
		if len(identities) >= opts.MaxRows {
			break
		}
		cells := rowCells[node]
		anchor := cells.FilterFunction(func(_ int, s *goquery.Selection) bool {
			_, ok := tokens[Fold(s.Text())]
			return ok
		}).First()
		if anchor.Length() == 0 {
			anchor = cells.First()
		}

		tds := cells.First().Closest("tr").ChildrenFiltered("td")
		primary := tds.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Is(opts.CellSelector)
		}).First()
		if primary.Length() == 0 {
			primary = anchor
		}

		identities = append(identities, RowIdentity{
			Ordinal:   len(identities),
			RowIndex:  rowIndex[node],
			CellIndex: tds.IndexOfSelection(primary),
			Label:     CleanText(primary.Text()),
		})
	}

	return identities, nil
}
