package frontend

import (
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/guard"
	"github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/jo-hoe/oralvis/internal/report"
	"github.com/labstack/echo/v4"
)

const (
	loginView        = "login.html"
	technicianView   = "technician.html"
	dentistView      = "dentist.html"
	unauthorizedView = "unauthorized.html"
	notFoundView     = "notfound.html"
	errorView        = "error.html"
)

type uploadForm struct {
	PatientName string
	PatientID   string
	ScanType    string
	Region      string
}

type scanView struct {
	ID            string
	PatientName   string
	PatientID     string
	ScanType      string
	Region        string
	UploadDate    string
	UploadDateISO string
	ImageURL      string
	ThumbnailURL  string
	ReportURL     string
}

type page struct {
	Title    string
	Identity *auth.Identity
	Home     string
	Notice   string
	Error    string

	Email string

	Form      uploadForm
	ScanTypes []string
	Regions   []string

	Scans []scanView
}

func newPage(ctx echo.Context, title string) *page {
	p := &page{Title: title, Home: guard.LoginPath}
	if identity := middleware.IdentityFrom(ctx); identity != nil {
		p.Identity = identity
		p.Home = guard.HomeFor(identity.Role)
	}
	return p
}

func toScanView(r *database.ScanRecord) scanView {
	return scanView{
		ID:            r.ID,
		PatientName:   r.PatientName,
		PatientID:     r.PatientID,
		ScanType:      r.ScanType,
		Region:        r.Region,
		UploadDate:    r.UploadDate.Format(report.DateLayout),
		UploadDateISO: r.UploadDate.Format(time.RFC3339),
		ImageURL:      r.ImageURL,
		ThumbnailURL:  "/scans/" + r.ID + "/thumbnail",
		ReportURL:     "/scans/" + r.ID + "/report",
	}
}
