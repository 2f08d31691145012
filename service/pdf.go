package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
)

// ExportMode selects how a rendered contract becomes a PDF
type ExportMode string

const (
	// ExportRaster screenshots the document and places the image on A4 pages
	ExportRaster ExportMode = "raster"
	// ExportPrint uses the browser's native A4 print pipeline with selectable text
	ExportPrint ExportMode = "print"
)

// ParseExportMode maps a query value to a mode. Empty means raster.
func ParseExportMode(s string) (ExportMode, error) {
	switch ExportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportRaster:
		return ExportRaster, nil
	case ExportPrint:
		return ExportPrint, nil
	default:
		return "", fmt.Errorf("%w: unknown export mode %q", ErrValidation, s)
	}
}

// A4 layout in millimetres. Raster pages carry a 10 mm margin on every side.
const (
	a4WidthMM     = 210.0
	a4HeightMM    = 297.0
	pageMarginMM  = 10.0
	imageWidthMM  = a4WidthMM - 2*pageMarginMM
	imageHeightMM = a4HeightMM - 2*pageMarginMM
	mmPerInch     = 25.4
)

const documentSelector = "#contract-document"

// Exporter turns a rendered HTML page into PDF bytes
type Exporter interface {
	Export(ctx context.Context, html string, mode ExportMode) ([]byte, error)
}

// PDFService renders pages in a headless Chrome driven by rod. The browser is
// launched on first use and shared by all exports.
type PDFService struct {
	config *config.PDFConfig

	mu      sync.Mutex
	browser *rod.Browser
}

func NewPDFService(cfg *config.PDFConfig) *PDFService {
	return &PDFService{config: cfg}
}

// ExportFilename is the download name for a contract type label
func ExportFilename(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Contract"
	}
	return label + ".pdf"
}

// Export loads html into a fresh page and produces a PDF in the given mode.
// All failures wrap ErrExportFailed.
func (s *PDFService) Export(ctx context.Context, html string, mode ExportMode) ([]byte, error) {
	start := time.Now()

	data, err := s.export(ctx, html, mode)
	if err != nil {
		logger.Error(ctx, "PDF export failed", "mode", mode, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	logger.Info(ctx, "PDF exported",
		"mode", mode,
		"size", len(data),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (s *PDFService) export(ctx context.Context, html string, mode ExportMode) ([]byte, error) {
	browser, err := s.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.config.ViewportWidth,
		Height:            int(float64(s.config.ViewportWidth) * a4HeightMM / a4WidthMM),
		DeviceScaleFactor: s.config.DeviceScaleFactor,
		Mobile:            false,
	}).Call(page); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for document: %w", err)
	}
	el, err := page.Element(documentSelector)
	if err != nil {
		return nil, fmt.Errorf("find document region: %w", err)
	}

	switch mode {
	case ExportPrint:
		return printPDF(page)
	default:
		shape, err := el.Shape()
		if err != nil {
			return nil, fmt.Errorf("measure document region: %w", err)
		}
		clip, err := documentClip(shape.Box())
		if err != nil {
			return nil, err
		}
		// Full page so a document taller than the viewport is captured whole
		shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
			Format:                proto.PageCaptureScreenshotFormatPng,
			Clip:                  clip,
			CaptureBeyondViewport: true,
		})
		if err != nil {
			return nil, fmt.Errorf("capture document: %w", err)
		}
		img, err := png.Decode(bytes.NewReader(shot))
		if err != nil {
			return nil, fmt.Errorf("decode capture: %w", err)
		}
		return assembleRasterPDF(img)
	}
}

// documentClip turns the document element's box into a screenshot clip
func documentClip(box *proto.DOMRect) (*proto.PageViewport, error) {
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("document region has no size")
	}
	return &proto.PageViewport{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: box.Height,
		Scale:  1,
	}, nil
}

func printPDF(page *rod.Page) ([]byte, error) {
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:        gson.Num(a4WidthMM / mmPerInch),
		PaperHeight:       gson.Num(a4HeightMM / mmPerInch),
		MarginTop:         gson.Num(pageMarginMM / mmPerInch),
		MarginBottom:      gson.Num(pageMarginMM / mmPerInch),
		MarginLeft:        gson.Num(pageMarginMM / mmPerInch),
		MarginRight:       gson.Num(pageMarginMM / mmPerInch),
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print to PDF: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read PDF stream: %w", err)
	}
	return data, nil
}

func (s *PDFService) ensureBrowser() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return s.browser, nil
		}
		_ = s.browser.Close()
		s.browser = nil
	}

	l := launcher.New().Headless(true)
	if s.config.ChromePath != "" {
		l = l.Bin(s.config.ChromePath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	return browser, nil
}

// Close shuts the shared browser down, if one was started
func (s *PDFService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

// slicePages cuts a document capture into page-sized strips whose aspect
// ratio matches the printable A4 area.
func slicePages(img image.Image) []image.Image {
	b := img.Bounds()
	pageH := int(float64(b.Dx()) * imageHeightMM / imageWidthMM)
	if pageH <= 0 {
		return nil
	}

	var pages []image.Image
	for y := b.Min.Y; y < b.Max.Y; y += pageH {
		r := image.Rect(b.Min.X, y, b.Max.X, min(y+pageH, b.Max.Y))
		strip := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(strip, strip.Bounds(), img, r.Min, draw.Src)
		pages = append(pages, strip)
	}
	return pages
}

// assembleRasterPDF places each strip at 10 mm / 10 mm, 190 mm wide, one per A4 page
func assembleRasterPDF(img image.Image) ([]byte, error) {
	pages := slicePages(img)
	if len(pages) == 0 {
		return nil, fmt.Errorf("empty document capture")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	opts := fpdf.ImageOptions{ImageType: "PNG"}

	for i, p := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, p); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, pageMarginMM, pageMarginMM, imageWidthMM, 0, false, opts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write PDF: %w", err)
	}
	return out.Bytes(), nil
}
