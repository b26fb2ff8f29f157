// Package report renders a scan record into a single-page PDF with the scan image embedded.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/jo-hoe/oralvis/internal/assets"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/imaging"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	DateLayout = "2006-01-02"

	pageWidth    = 210.0 // A4, mm
	pageHeight   = 297.0
	margin       = 20.0
	imageTop     = 112.0
	logoSize     = 16.0
	logoPixels   = 128
	pixelsPerMM  = 4.0
	scanImageKey = "scan"
	logoImageKey = "logo"
	fontFamily   = "Go"
)

// Document is a rendered report.
type Document struct {
	Name string // {patientName}_{patientId}_report
	Data []byte
}

// FileName is Name with a .pdf suffix, safe for a Content-Disposition header.
func (d *Document) FileName() string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '"', r == '/', r == '\\', r == 0x7f:
			return '_'
		}
		return r
	}, d.Name) + ".pdf"
}

func DocumentName(r *database.ScanRecord) string {
	return fmt.Sprintf("%s_%s_report", r.PatientName, r.PatientID)
}

type Renderer struct {
	title string
	logo  []byte // PNG, nil when the logo could not be rasterized
	now   func() time.Time
}

func NewRenderer() *Renderer {
	logo, err := imaging.RenderSVG(assets.LogoSVG, logoPixels, logoPixels)
	if err != nil {
		slog.Warn("report logo unavailable, rendering without it", "error", err)
		logo = nil
	}
	return &Renderer{
		title: assets.ReportTitle,
		logo:  logo,
		now:   time.Now,
	}
}

// Render fails with an *ExportError when the scan image is missing or unreadable.
func (r *Renderer) Render(rec *database.ScanRecord) (*Document, error) {
	scan, imageType, err := embeddableImage(rec)
	if err != nil {
		return nil, &ExportError{ScanID: rec.ID, Err: err}
	}
	width, height, err := imaging.Dimensions(scan)
	if err != nil {
		return nil, &ExportError{ScanID: rec.ID, Err: err}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	// the core PDF fonts only cover cp1252
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", gobold.TTF)
	pdf.SetTitle(DocumentName(rec), true)
	pdf.SetCreator(assets.ProductName, true)
	pdf.SetCreationDate(r.now())
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	titleX := margin
	if r.logo != nil {
		opt := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(logoImageKey, opt, bytes.NewReader(r.logo))
		pdf.ImageOptions(logoImageKey, margin, 18, logoSize, logoSize, false, opt, 0, "")
		titleX += logoSize + 4
	}
	pdf.SetFont(fontFamily, "B", 20)
	pdf.Text(titleX, 30, r.title)

	pdf.SetFont(fontFamily, "", 12)
	for i, line := range lines(rec) {
		pdf.Text(margin, 50+float64(i)*10, line)
	}

	pdf.SetFont(fontFamily, "B", 12)
	pdf.Text(margin, imageTop-4, "Scan Image:")

	w, h := fitInto(float64(width), float64(height), pageWidth-2*margin, pageHeight-imageTop-margin)
	opt := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(scanImageKey, opt, bytes.NewReader(scan))
	pdf.ImageOptions(scanImageKey, margin, imageTop, w, h, false, opt, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &ExportError{ScanID: rec.ID, Err: fmt.Errorf("failed to write PDF: %w", err)}
	}
	return &Document{Name: DocumentName(rec), Data: buf.Bytes()}, nil
}

// lines are the text fields printed above the scan image, in order.
func lines(rec *database.ScanRecord) []string {
	return []string{
		"Patient Name: " + rec.PatientName,
		"Patient ID: " + rec.PatientID,
		"Scan Type: " + rec.ScanType,
		"Region: " + rec.Region,
		"Upload Date: " + rec.UploadDate.Format(DateLayout),
	}
}

// embeddableImage returns image bytes fpdf can place, with the fpdf image type.
// The type is taken from the content, not from the declared MIME type.
func embeddableImage(rec *database.ScanRecord) ([]byte, string, error) {
	if len(rec.Image) == 0 {
		return nil, "", errors.New("scan has no image data")
	}
	mime, err := imaging.DetectType(rec.Image)
	if err != nil {
		return nil, "", err
	}
	if mime == imaging.MIMEJPEG {
		return rec.Image, "JPG", nil
	}
	png, err := imaging.ToPNG8(rec.Image)
	if err != nil {
		return nil, "", err
	}
	return png, "PNG", nil
}

// fitInto places the image at 4 pixels per millimetre and shrinks it to fit the
// box, preserving the aspect ratio.
func fitInto(w, h, maxW, maxH float64) (float64, float64) {
	w, h = w/pixelsPerMM, h/pixelsPerMM
	scale := min(maxW/w, maxH/h, 1.0)
	return w * scale, h * scale
}
