package extract

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/anvisa/models"
)

const detailURL = "https://consultas.anvisa.gov.br/#/medicamentos/25351446122201811/"

func parse(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractDetail(t *testing.T) {
	rec, err := ExtractDetail(readFixture(t, "detail.html"), detailURL)
	if err != nil {
		t.Fatalf("ExtractDetail: %v", err)
	}

	want := &models.ProductRecord{
		Name:               "NUBEQA",
		ProcessNumber:      "25351.446122/2018-11",
		RegistrationNumber: "170560118",
		RegistrationDate:   "23/12/2019",
		ExpiryDate:         "12/2029",
		Company:            "BAYER S.A.",
		TaxID:              "18.459.628/0001-15",
		LicenseNumber:      "1.00.056-0",
		ActiveIngredient:   "DAROLUTAMIDA",
		RegulatoryCategory: "Novo",
		ReferenceDrugFlag:  "REFERÊNCIA",
		TherapeuticClass:   "ANTINEOPLASICOS",
		ATCCode:            "L02BB06",
		Links: models.DocumentLinks{
			LeafletURL:      "https://consultas.anvisa.gov.br/#/bulario/q/?numeroRegistro=170560118",
			PublicReportURL: "https://consultas.anvisa.gov.br/api/consulta/medicamento/parecer/25351446122201811",
			LabelingFiles: []models.LabelingFile{
				{Filename: "NUBEQA_300MG_CAIXA.pdf", URL: "https://consultas.anvisa.gov.br/api/consulta/medicamentos/arquivo/rotulo/1"},
				{Filename: "NUBEQA_300MG_FRASCO.pdf", URL: "https://consultas.anvisa.gov.br/api/consulta/medicamentos/arquivo/rotulo/2"},
			},
		},
		Presentations: []models.Presentation{
			{
				Ordinal:            "1",
				Description:        "300 MG COM REV CT FR PLAS PEAD OPC X 120",
				RegistrationCode:   "1705601180017",
				PharmaceuticalForm: "COMPRIMIDO REVESTIDO",
				PublicationDate:    "23/12/2019",
				ValidityPeriod:     "36 meses",
			},
			{
				Ordinal:            "3",
				Description:        "300 MG COM REV CT 4 BL AL AL X 28",
				RegistrationCode:   "1705601180033",
				PharmaceuticalForm: "COMPRIMIDO REVESTIDO",
				PublicationDate:    "05/01/2021",
				ValidityPeriod:     "36 meses",
			},
		},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDetail_MissingActiveIngredient(t *testing.T) {
	html := `<table>
		<tr><th>Nome do Produto</th><td>NUBEQA</td></tr>
		<tr><th>Princípio Ativo</th><td></td></tr>
	</table>`

	rec, err := ExtractDetail(html, detailURL)
	if !errors.Is(err, ErrExtractionIncomplete) {
		t.Errorf("err = %v, want ErrExtractionIncomplete", err)
	}
	if rec != nil {
		t.Errorf("record = %+v, want nil", rec)
	}
}

func TestExtractDetail_MissingName(t *testing.T) {
	html := `<table><tr><th>Princípio Ativo</th><td>DAROLUTAMIDA</td></tr></table>`
	if _, err := ExtractDetail(html, detailURL); !errors.Is(err, ErrExtractionIncomplete) {
		t.Errorf("err = %v, want ErrExtractionIncomplete", err)
	}
}

func TestFindValueByLabel(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		label string
		want  string
	}{
		{
			name:  "th and td",
			html:  `<table><tr><th>CNPJ</th><td>18.459.628/0001-15</td></tr></table>`,
			label: "CNPJ",
			want:  "18.459.628/0001-15",
		},
		{
			name:  "label nested in cell",
			html:  `<table><tr><td><label>Classe Terapêutica:</label></td><td> ANTINEOPLASICOS </td></tr></table>`,
			label: "Classe Terapêutica",
			want:  "ANTINEOPLASICOS",
		},
		{
			name:  "accents and case differ",
			html:  `<table><tr><th>PRINCIPIO ATIVO</th><td>DAROLUTAMIDA</td></tr></table>`,
			label: "Princípio Ativo",
			want:  "DAROLUTAMIDA",
		},
		{
			name:  "containing match",
			html:  `<dl><dt>Código ATC (OMS)</dt><dd>L02BB06</dd></dl>`,
			label: "ATC",
			want:  "L02BB06",
		},
		{
			name: "exact match preferred",
			html: `<table>
				<tr><th>Data da Regularização Anterior</th><td>01/01/2000</td></tr>
				<tr><th>Data da Regularização</th><td>23/12/2019</td></tr>
			</table>`,
			label: "Data da Regularização",
			want:  "23/12/2019",
		},
		{
			name:  "value is the next label",
			html:  `<div><b>Número do Processo</b><b>Número da Regularização</b></div>`,
			label: "Número do Processo",
			want:  "",
		},
		{
			name:  "short value with label keyword is kept",
			html:  `<table><tr><th>Categoria Regulatória</th><td>Medicamento Novo</td></tr></table>`,
			label: "Categoria Regulatória",
			want:  "Medicamento Novo",
		},
		{
			name:  "missing label",
			html:  `<table><tr><th>CNPJ</th><td>1</td></tr></table>`,
			label: "AFE",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindValueByLabel(parse(t, tt.html), tt.label); got != tt.want {
				t.Errorf("FindValueByLabel(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestExtractDocumentLinks_AnchorText(t *testing.T) {
	doc := parse(t, `<div>
		<a href="bula.pdf">Bulário Eletrônico</a>
		<a href="#">Parecer Público</a>
	</div>`)
	base, _ := url.Parse("https://consultas.anvisa.gov.br/docs/")

	got := ExtractDocumentLinks(doc, base)
	want := models.DocumentLinks{
		LeafletURL:    "https://consultas.anvisa.gov.br/docs/bula.pdf",
		LabelingFiles: []models.LabelingFile{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPresentations_PositionalFallback(t *testing.T) {
	doc := parse(t, `<table>
		<tr><th>#</th><th>Apresentação</th><th>Cód.</th></tr>
		<tr><td>1</td><td>10 MG X 30</td><td>123</td></tr>
		<tr><td>2</td></tr>
	</table>`)

	got := ExtractPresentations(doc)
	want := []models.Presentation{{Ordinal: "1", Description: "10 MG X 30", RegistrationCode: "123"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("presentations mismatch (-want +got):\n%s", diff)
	}
}
