package service

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/model"
)

//go:embed templates/contract.html.tmpl
var templateFS embed.FS

var contractTemplate = template.Must(template.ParseFS(templateFS, "templates/contract.html.tmpl"))

// Renderer turns contract markdown into a standalone, printable HTML page.
// The markdown is treated as untrusted: raw HTML is dropped by goldmark and the
// result is sanitised again before it reaches the template.
type Renderer struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	theme     themeCSS
	signature bool
	witness   bool
}

// themeCSS holds the theme tokens already formatted as CSS values
type themeCSS struct {
	Primary    template.CSS
	Secondary  template.CSS
	Background template.CSS
	Paper      template.CSS
	Text       template.CSS
	FontFamily template.CSS
	FontSize   template.CSS
	LineHeight template.CSS
	Padding    template.CSS
	Width      template.CSS
}

type signatureData struct {
	Parties []string
	Witness bool
}

type pageData struct {
	Title     string
	Theme     themeCSS
	Body      template.HTML
	Signature *signatureData
}

// NewRenderer builds a renderer for the given theme. widthPx is the paper width
// used on screen and by the raster exporter.
func NewRenderer(theme config.ThemeConfig, render config.RenderConfig, widthPx int) *Renderer {
	if widthPx <= 0 {
		widthPx = 800
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		theme: themeCSS{
			Primary:    template.CSS(theme.Primary),
			Secondary:  template.CSS(theme.Secondary),
			Background: template.CSS(theme.Background),
			Paper:      template.CSS(theme.Paper),
			Text:       template.CSS(theme.Text),
			FontFamily: template.CSS(theme.FontFamily),
			FontSize:   template.CSS(strconv.Itoa(theme.FontSizePx) + "px"),
			LineHeight: template.CSS(strconv.FormatFloat(theme.LineHeight, 'f', -1, 64)),
			Padding:    template.CSS(strconv.Itoa(theme.PagePaddingPx) + "px"),
			Width:      template.CSS(strconv.Itoa(widthPx) + "px"),
		},
		signature: render.SignatureEnabled(),
		witness:   render.WitnessEnabled(),
	}
}

// Fragment converts markdown to sanitised HTML without the page wrapper
func (r *Renderer) Fragment(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Render produces the full HTML page for a contract. Party names in the
// signature section come from fields, falling back to generic labels.
func (r *Renderer) Render(title, markdown string, fields model.ContractFields) (string, error) {
	if markdown == "" {
		return "", ErrNoDocument
	}

	body, err := r.Fragment(markdown)
	if err != nil {
		return "", err
	}

	data := pageData{
		Title: title,
		Theme: r.theme,
		Body:  template.HTML(body),
	}
	if r.signature {
		data.Signature = &signatureData{
			Parties: []string{partyLabel(fields.Party1, "First Party"), partyLabel(fields.Party2, "Second Party")},
			Witness: r.witness,
		}
	}

	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render contract page: %w", err)
	}
	return buf.String(), nil
}

func partyLabel(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
