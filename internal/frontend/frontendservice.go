package frontend

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/jo-hoe/oralvis/internal/assets"
	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/common"
	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/jo-hoe/oralvis/internal/guard"
	"github.com/jo-hoe/oralvis/internal/imaging"
	"github.com/jo-hoe/oralvis/internal/metrics"
	"github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/labstack/echo/v4"
)

const (
	mimePNG  = "image/png"
	iconSize = 64
)

type FrontendService struct {
	coreService *core.CoreService
	sessions    *middleware.SessionCookies
	loginLimit  *middleware.RateLimiter

	iconOnce sync.Once
	icon     []byte
}

func NewFrontendService(coreService *core.CoreService, sessions *middleware.SessionCookies, loginLimit *middleware.RateLimiter) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		sessions:    sessions,
		loginLimit:  loginLimit,
	}
}

// SetRoutes expects the session middleware to be installed on e already.
func (service *FrontendService) SetRoutes(e *echo.Echo) error {
	renderer, err := NewTemplate()
	if err != nil {
		return err
	}
	e.Renderer = renderer
	if e.Validator == nil {
		e.Validator = common.NewGenericEchoValidator()
	}
	e.HTTPErrorHandler = service.errorHandler(e.DefaultHTTPErrorHandler)

	e.GET("/", service.rootRedirectHandler)
	e.GET(guard.LoginPath, service.loginPageHandler)
	loginMiddleware := []echo.MiddlewareFunc{}
	if service.loginLimit != nil {
		loginMiddleware = append(loginMiddleware, middleware.RateLimit(service.loginLimit))
	}
	e.POST(guard.LoginPath, service.loginHandler, loginMiddleware...)
	e.POST("/logout", service.logoutHandler)
	e.GET(guard.UnauthorizedPath, service.unauthorizedHandler)
	e.GET("/icon.png", service.iconHandler)

	// per-route guards; a guarded group would also catch unknown paths
	technician := guard.Require(auth.RoleTechnician)
	e.GET(guard.TechnicianPath, service.technicianPageHandler, technician)
	e.POST(guard.TechnicianPath+"/scans", service.uploadScanHandler, technician)

	dentist := guard.Require(auth.RoleDentist)
	e.GET(guard.DentistPath, service.dentistPageHandler, dentist)
	e.GET("/scans/:id/image", service.scanImageHandler, dentist)
	e.GET("/scans/:id/thumbnail", service.scanThumbnailHandler, dentist)
	e.GET("/scans/:id/report", service.scanReportHandler, dentist)
	return nil
}

func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	if identity := middleware.IdentityFrom(ctx); identity != nil {
		return ctx.Redirect(http.StatusSeeOther, guard.HomeFor(identity.Role))
	}
	return ctx.Redirect(http.StatusSeeOther, guard.LoginPath)
}

type loginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

func (service *FrontendService) loginPageHandler(ctx echo.Context) error {
	if identity := middleware.IdentityFrom(ctx); identity != nil {
		return ctx.Redirect(http.StatusSeeOther, guard.HomeFor(identity.Role))
	}
	return ctx.Render(http.StatusOK, loginView, newPage(ctx, "Sign in"))
}

func (service *FrontendService) loginHandler(ctx echo.Context) error {
	var form loginForm
	if err := ctx.Bind(&form); err != nil {
		return service.renderLoginError(ctx, http.StatusBadRequest, "", "Email and password are required.")
	}
	if err := ctx.Validate(&form); err != nil {
		return service.renderLoginError(ctx, http.StatusBadRequest, form.Email, "Email and password are required.")
	}

	identity, err := service.sessions.Login(ctx, form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Error("loginHandler: failed to start session", "status", http.StatusInternalServerError, "error", err)
			service.coreService.Metrics().Login(metrics.ResultFailed)
			return service.renderLoginError(ctx, http.StatusInternalServerError, form.Email, "Could not start a session, please try again.")
		}
		slog.Info("login failed", "status", http.StatusUnauthorized, "error", err)
		service.coreService.Metrics().Login(metrics.ResultRejected)
		return service.renderLoginError(ctx, common.StatusFor(err), form.Email, common.MessageFor(err))
	}
	slog.Info("login succeeded", "user_id", identity.ID, "role", identity.Role)
	service.coreService.Metrics().Login(metrics.ResultSuccess)
	return ctx.Redirect(http.StatusSeeOther, guard.HomeFor(identity.Role))
}

func (service *FrontendService) renderLoginError(ctx echo.Context, status int, email, message string) error {
	p := newPage(ctx, "Sign in")
	p.Email = email
	p.Error = message
	return ctx.Render(status, loginView, p)
}

func (service *FrontendService) logoutHandler(ctx echo.Context) error {
	if identity := middleware.IdentityFrom(ctx); identity != nil {
		slog.Info("logout", "user_id", identity.ID)
	}
	service.sessions.End(ctx)
	return ctx.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (service *FrontendService) unauthorizedHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusForbidden, unauthorizedView, newPage(ctx, "Access denied"))
}

func (service *FrontendService) technicianPageHandler(ctx echo.Context) error {
	p := service.technicianPage(ctx)
	if ctx.QueryParam("uploaded") != "" {
		p.Notice = "Scan uploaded successfully."
	}
	setNoCache(ctx)
	return ctx.Render(http.StatusOK, technicianView, p)
}

func (service *FrontendService) technicianPage(ctx echo.Context) *page {
	p := newPage(ctx, "Upload scan")
	p.ScanTypes = core.ScanTypes
	p.Regions = core.Regions
	p.Form.ScanType = core.ScanTypeRGB
	return p
}

func (service *FrontendService) uploadScanHandler(ctx echo.Context) error {
	limit := service.coreService.Config().Upload.MaxImageBytes
	candidate, err := common.CandidateFromRequest(ctx, limit)
	if err != nil {
		slog.Warn("uploadScanHandler: failed to read upload", "status", http.StatusBadRequest, "error", err)
		return service.renderUploadError(ctx, http.StatusBadRequest, candidate, "The upload could not be read, please try again.")
	}

	record, err := service.coreService.SubmitScan(ctx.Request().Context(), candidate)
	if err != nil {
		return service.renderUploadError(ctx, common.StatusFor(err), candidate, common.MessageFor(err))
	}

	// redirect so a reload does not submit the scan twice
	return ctx.Redirect(http.StatusSeeOther, guard.TechnicianPath+"?uploaded="+record.ID)
}

func (service *FrontendService) renderUploadError(ctx echo.Context, status int, candidate core.Candidate, message string) error {
	p := service.technicianPage(ctx)
	p.Error = message
	p.Form = uploadForm{
		PatientName: candidate.PatientName,
		PatientID:   candidate.PatientID,
		ScanType:    candidate.ScanType,
		Region:      candidate.Region,
	}
	return ctx.Render(status, technicianView, p)
}

func (service *FrontendService) dentistPageHandler(ctx echo.Context) error {
	p := newPage(ctx, "Patient scans")
	records, err := service.coreService.ListScans(ctx.Request().Context())
	if err != nil {
		slog.Error("dentistPageHandler: failed to list scans", "status", common.StatusFor(err), "error", err)
		p.Error = common.MessageFor(err)
		return ctx.Render(common.StatusFor(err), dentistView, p)
	}
	p.Scans = make([]scanView, 0, len(records))
	for _, r := range records {
		p.Scans = append(p.Scans, toScanView(r))
	}
	setNoCache(ctx)
	return ctx.Render(http.StatusOK, dentistView, p)
}

func (service *FrontendService) scanImageHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	record, err := service.coreService.GetScan(ctx.Request().Context(), id)
	if err != nil {
		return service.scanError(ctx, id, err)
	}
	setPrivateCache(ctx)
	return ctx.Blob(http.StatusOK, record.ImageType, record.Image)
}

func (service *FrontendService) scanThumbnailHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	thumbnail, err := service.coreService.Thumbnail(ctx.Request().Context(), id)
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrStorage) {
		return service.scanError(ctx, id, err)
	}
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("scanThumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "scan_id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}
	setPrivateCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) scanReportHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	doc, err := service.coreService.ExportScanByID(ctx.Request().Context(), id)
	if err != nil {
		return service.scanError(ctx, id, err)
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName()})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	setNoCache(ctx)
	return ctx.Blob(http.StatusOK, "application/pdf", doc.Data)
}

func (service *FrontendService) scanError(ctx echo.Context, id string, err error) error {
	status := common.StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("scan request failed", "status", status, "scan_id", id, "error", err)
	} else {
		slog.Warn("scan request failed", "status", status, "scan_id", id, "error", err)
	}
	p := newPage(ctx, common.MessageFor(err))
	p.Error = common.MessageFor(err)
	return ctx.Render(status, errorView, p)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	service.iconOnce.Do(func() {
		icon, err := imaging.RenderSVG(assets.LogoSVG, iconSize, iconSize)
		if err != nil {
			slog.Error("iconHandler: failed to render icon", "error", err)
			return
		}
		service.icon = icon
	})
	if service.icon == nil {
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, service.icon)
}

// errorHandler renders the not-found page for unknown page routes and the login
// page for rate-limited sign-ins. Everything else goes to echo's default handler.
func (service *FrontendService) errorHandler(fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var httpErr *echo.HTTPError
		if ctx.Response().Committed || !errors.As(err, &httpErr) || isAPIRequest(ctx) {
			fallback(err, ctx)
			return
		}
		var renderErr error
		switch {
		case httpErr.Code == http.StatusNotFound || httpErr.Code == http.StatusMethodNotAllowed:
			renderErr = ctx.Render(http.StatusNotFound, notFoundView, newPage(ctx, "Page not found"))
		case httpErr.Code == http.StatusTooManyRequests && ctx.Path() == guard.LoginPath:
			renderErr = service.renderLoginError(ctx, http.StatusTooManyRequests, ctx.FormValue("email"),
				"Too many sign-in attempts, please wait a moment and try again.")
		default:
			fallback(err, ctx)
			return
		}
		if renderErr != nil {
			slog.Error("failed to render error page", "error", renderErr)
			fallback(err, ctx)
		}
	}
}

func isAPIRequest(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().URL.Path, "/api/")
}

func setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

// scan images never change once stored
func setPrivateCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600")
}
