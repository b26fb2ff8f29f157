package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/common"
	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/jo-hoe/oralvis/internal/guard"
	"github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/labstack/echo/v4"
)

const APIPrefix = "/api/v1"

type APIService struct {
	coreService *core.CoreService
}

// Scan is the API view of a scan record. Image bytes are served from ImageURL.
type Scan struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patientName"`
	PatientID   string    `json:"patientId"`
	ScanType    string    `json:"scanType"`
	Region      string    `json:"region"`
	ImageURL    string    `json:"imageUrl"`
	UploadDate  time.Time `json:"uploadDate"`
	ImageType   string    `json:"imageType"`
}

type SessionInfo struct {
	Authenticated bool           `json:"authenticated"`
	Identity      *auth.Identity `json:"identity,omitempty"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{coreService: coreService}
}

// SetRoutes expects the session middleware to be installed on e already.
func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.GET(APIPrefix+"/session", s.sessionHandler)
	e.GET(APIPrefix+"/scans", s.listScansHandler, guard.Require(auth.RoleDentist))
	e.GET(APIPrefix+"/scans/:id", s.getScanHandler, guard.Require(auth.RoleDentist))
	e.POST(APIPrefix+"/scans", s.createScanHandler, guard.Require(auth.RoleTechnician))
}

// ToScan drops the image bytes from a record.
func ToScan(r *database.ScanRecord) Scan {
	return Scan{
		ID:          r.ID,
		PatientName: r.PatientName,
		PatientID:   r.PatientID,
		ScanType:    r.ScanType,
		Region:      r.Region,
		ImageURL:    r.ImageURL,
		UploadDate:  r.UploadDate,
		ImageType:   r.ImageType,
	}
}

func (s *APIService) sessionHandler(c echo.Context) error {
	identity := middleware.IdentityFrom(c)
	return c.JSON(http.StatusOK, SessionInfo{Authenticated: identity != nil, Identity: identity})
}

func (s *APIService) listScansHandler(c echo.Context) error {
	records, err := s.coreService.ListScans(c.Request().Context())
	if err != nil {
		return apiError(err)
	}
	scans := make([]Scan, 0, len(records))
	for _, r := range records {
		scans = append(scans, ToScan(r))
	}
	return c.JSON(http.StatusOK, scans)
}

func (s *APIService) getScanHandler(c echo.Context) error {
	record, err := s.coreService.GetScan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, ToScan(record))
}

func (s *APIService) createScanHandler(c echo.Context) error {
	candidate, err := common.CandidateFromRequest(c, s.coreService.Config().Upload.MaxImageBytes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload form").SetInternal(err)
	}
	record, err := s.coreService.SubmitScan(c.Request().Context(), candidate)
	if err != nil {
		return apiError(err)
	}
	c.Response().Header().Set(echo.HeaderLocation, APIPrefix+"/scans/"+record.ID)
	return c.JSON(http.StatusCreated, ToScan(record))
}

func apiError(err error) *echo.HTTPError {
	status := common.StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("api request failed", "status", status, "error", err)
	}
	return echo.NewHTTPError(status, common.MessageFor(err)).SetInternal(err)
}
