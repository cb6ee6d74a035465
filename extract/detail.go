package extract

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/anvisa/models"
)

// ErrExtractionIncomplete is returned when a detail view lacks the product
// name or the active ingredient.
var ErrExtractionIncomplete = errors.New("detail view lacks mandatory fields")

// Field binds a record field to the label displayed next to its value.
type Field struct {
	Label string
	Set   func(r *models.ProductRecord, v string)
}

// Fields is the canonical detail layout.
var Fields = []Field{
	{"Nome do Produto", func(r *models.ProductRecord, v string) { r.Name = v }},
	{"Complemento da Marca", func(r *models.ProductRecord, v string) { r.Complement = v }},
	{"Número do Processo", func(r *models.ProductRecord, v string) { r.ProcessNumber = v }},
	{"Número da Regularização", func(r *models.ProductRecord, v string) { r.RegistrationNumber = v }},
	{"Data da Regularização", func(r *models.ProductRecord, v string) { r.RegistrationDate = v }},
	{"Vencimento da Regularização", func(r *models.ProductRecord, v string) { r.ExpiryDate = v }},
	{"Empresa Detentora da Regularização", func(r *models.ProductRecord, v string) { r.Company = v }},
	{"CNPJ", func(r *models.ProductRecord, v string) { r.TaxID = v }},
	{"AFE", func(r *models.ProductRecord, v string) { r.LicenseNumber = v }},
	{"Princípio Ativo", func(r *models.ProductRecord, v string) { r.ActiveIngredient = v }},
	{"Categoria Regulatória", func(r *models.ProductRecord, v string) { r.RegulatoryCategory = v }},
	{"Medicamento de referência", func(r *models.ProductRecord, v string) { r.ReferenceDrugFlag = v }},
	{"Classe Terapêutica", func(r *models.ProductRecord, v string) { r.TherapeuticClass = v }},
	{"ATC", func(r *models.ProductRecord, v string) { r.ATCCode = v }},
	{"Tipo de Priorização", func(r *models.ProductRecord, v string) { r.PriorityType = v }},
}

// Document labels.
const (
	LabelLeaflet      = "Bulário Eletrônico"
	LabelPublicReport = "Parecer Público"
	LabelLabeling     = "Rotulagem"
)

// labelCells are the elements that can carry a field label.
const labelCells = "th, td, label, dt, strong, b"

// knownLabels holds every folded label of the detail layout. A candidate
// value equal to one of them is an empty value cell followed by the next
// label, not a value.
var knownLabels = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Fields)+4)
	for _, f := range Fields {
		m[Fold(f.Label)] = struct{}{}
	}
	for _, l := range []string{LabelLeaflet, LabelPublicReport, LabelLabeling, "Situação"} {
		m[Fold(l)] = struct{}{}
	}
	return m
}()

// ExtractDetail parses a rendered detail view into a ProductRecord.
// Relative document links are resolved against baseURL. It returns
// ErrExtractionIncomplete when the name or active ingredient is missing.
func ExtractDetail(rendered, baseURL string) (*models.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("parse detail view: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	rec := &models.ProductRecord{}
	for _, f := range Fields {
		f.Set(rec, FindValueByLabel(doc, f.Label))
	}
	if rec.Name == "" || rec.ActiveIngredient == "" {
		return nil, ErrExtractionIncomplete
	}

	rec.Links = ExtractDocumentLinks(doc, base)
	rec.Presentations = ExtractPresentations(doc)
	return rec, nil
}

// FindValueByLabel returns the text of the cell following the element
// labelled label. An exact (folded) label match wins over an element that
// merely contains the label. Empty values and values that are themselves
// a known label yield "".
func FindValueByLabel(doc *goquery.Document, label string) string {
	cell := findLabel(doc, label)
	if cell == nil {
		return ""
	}
	value := valueAfter(cell)
	if value == nil {
		return ""
	}
	text := CleanText(value.Text())
	if looksLikeLabel(text) {
		return ""
	}
	return text
}

// findLabel locates the element carrying label.
func findLabel(doc *goquery.Document, label string) *goquery.Selection {
	want := Fold(label)
	var exact, partial *goquery.Selection

	doc.Find(labelCells).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(strings.TrimSuffix(Fold(s.Text()), ":"))
		if text == "" {
			return true
		}
		if text == want {
			exact = s
			return false
		}
		// Only innermost cells may match partially; a container's text
		// includes every label below it.
		if partial == nil && strings.Contains(text, want) && s.Find(labelCells).Length() == 0 {
			partial = s
		}
		return true
	})

	if exact != nil {
		return exact
	}
	return partial
}

// valueAfter returns the structurally next element after a label: its own
// next sibling, or the next sibling of the closest ancestor that has one
// within the same row.
func valueAfter(s *goquery.Selection) *goquery.Selection {
	if next := s.Next(); next.Length() > 0 {
		return next
	}
	for p := s.Parent(); p.Length() > 0 && !p.Is("tr, table, body"); p = p.Parent() {
		if next := p.Next(); next.Length() > 0 {
			return next
		}
	}
	return nil
}

// looksLikeLabel reports whether a candidate value is really one of the
// layout's labels.
func looksLikeLabel(text string) bool {
	folded := Fold(text)
	if _, ok := knownLabels[strings.TrimSpace(strings.TrimSuffix(folded, ":"))]; ok {
		return true
	}
	if i := strings.Index(folded, ":"); i > 0 {
		_, ok := knownLabels[strings.TrimSpace(folded[:i])]
		return ok
	}
	return false
}

// ExtractDocumentLinks collects the leaflet, public report and labeling
// documents of a detail view as absolute URLs.
func ExtractDocumentLinks(doc *goquery.Document, base *url.URL) models.DocumentLinks {
	links := models.DocumentLinks{LabelingFiles: []models.LabelingFile{}}

	if a := anchorsFor(doc, LabelLeaflet); len(a) > 0 {
		links.LeafletURL = a[0].URL
	}
	if a := anchorsFor(doc, LabelPublicReport); len(a) > 0 {
		links.PublicReportURL = a[0].URL
	}
	for _, a := range anchorsFor(doc, LabelLabeling) {
		links.LabelingFiles = append(links.LabelingFiles, a)
	}

	for i := range links.LabelingFiles {
		links.LabelingFiles[i].URL = resolve(base, links.LabelingFiles[i].URL)
	}
	links.LeafletURL = resolve(base, links.LeafletURL)
	links.PublicReportURL = resolve(base, links.PublicReportURL)
	return links
}

// anchorsFor returns the usable anchors for a document label: those inside
// the labelled cell or the value cell next to it, or else anchors whose own
// text names the document.
func anchorsFor(doc *goquery.Document, label string) []models.LabelingFile {
	var found []models.LabelingFile
	collect := func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		name := CleanText(a.Text())
		if name == "" || Fold(name) == Fold(label) {
			name = path.Base(href)
		}
		found = append(found, models.LabelingFile{Filename: name, URL: href})
	}

	if cell := findLabel(doc, label); cell != nil {
		// The label may itself be the link.
		cell.Find("a").Each(collect)
		if len(found) == 0 {
			if value := valueAfter(cell); value != nil {
				value.Find("a").Each(collect)
				if value.Is("a") {
					collect(0, value)
				}
			}
		}
	}
	if len(found) > 0 {
		return found
	}

	want := Fold(label)
	doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.Contains(Fold(a.Text()), want)
	}).Each(collect)
	return found
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// Presentation columns, in their default positions.
var presentationColumns = []struct {
	header string
	set    func(p *models.Presentation, v string)
}{
	{"Nº", func(p *models.Presentation, v string) { p.Ordinal = v }},
	{"Apresentação", func(p *models.Presentation, v string) { p.Description = v }},
	{"Registro", func(p *models.Presentation, v string) { p.RegistrationCode = v }},
	{"Forma Farmacêutica", func(p *models.Presentation, v string) { p.PharmaceuticalForm = v }},
	{"Data de Publicação", func(p *models.Presentation, v string) { p.PublicationDate = v }},
	{"Validade", func(p *models.Presentation, v string) { p.ValidityPeriod = v }},
}

// ExtractPresentations maps the rows of the presentations sub-table into
// Presentations. The table is recognised by its header row naming the
// presentation or registration column. Columns are mapped by header name
// when the header is recognised and by position otherwise. Rows without a
// description are skipped.
func ExtractPresentations(doc *goquery.Document) []models.Presentation {
	out := []models.Presentation{}

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.ChildrenFiltered("th").Length() > 0
		}).First()
		if header.Length() == 0 || !isPresentationHeader(header) {
			return true
		}

		columns := columnPositions(header)
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.Get(0) == header.Get(0) {
				return
			}
			cells := tr.ChildrenFiltered("td")
			if cells.Length() < 2 {
				return
			}
			var p models.Presentation
			for i, col := range presentationColumns {
				pos := columns[i]
				if pos < 0 || pos >= cells.Length() {
					continue
				}
				col.set(&p, CleanText(cells.Eq(pos).Text()))
			}
			if p.Description == "" {
				return
			}
			out = append(out, p)
		})
		return false
	})

	return out
}

func isPresentationHeader(header *goquery.Selection) bool {
	ok := false
	header.ChildrenFiltered("th, td").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		text := Fold(th.Text())
		if strings.Contains(text, "APRESENTACAO") || text == "REGISTRO" {
			ok = true
			return false
		}
		return true
	})
	return ok
}

// columnPositions returns, for every presentation column, its index in the
// header row. Unrecognised headers fall back to the default position.
func columnPositions(header *goquery.Selection) []int {
	positions := make([]int, len(presentationColumns))
	for i := range positions {
		positions[i] = -1
	}

	recognised := 0
	header.ChildrenFiltered("th, td").Each(func(idx int, th *goquery.Selection) {
		text := Fold(th.Text())
		for i, col := range presentationColumns {
			if positions[i] == -1 && text == Fold(col.header) {
				positions[i] = idx
				recognised++
				return
			}
		}
	})

	if recognised < 2 {
		for i := range positions {
			positions[i] = i
		}
	}
	return positions
}
