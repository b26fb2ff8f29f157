package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/imaging"
	"github.com/jo-hoe/oralvis/internal/metrics"
	"github.com/jo-hoe/oralvis/internal/report"
)

type CoreService struct {
	config    *ServiceConfig
	store     database.ScanStore
	renderer  *report.Renderer
	validator *validator.Validate
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewCoreService opens the configured scan store.
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	store, err := getScanStore(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewCoreServiceWithStore(config, store), nil
}

func NewCoreServiceWithStore(config *ServiceConfig, store database.ScanStore) *CoreService {
	return &CoreService{
		config:    config,
		store:     store,
		renderer:  report.NewRenderer(),
		validator: newCandidateValidator(),
		metrics:   metrics.New(),
		now:       time.Now,
	}
}

// newCandidateValidator reports fields by their form names.
func newCandidateValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("form"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

func getScanStore(ctx context.Context, config *ServiceConfig) (database.ScanStore, error) {
	store, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString, config.Database.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type, "namespace", config.Database.Namespace)
	return store, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Metrics() *metrics.Metrics {
	return service.metrics
}

// SubmitScan validates a candidate and appends it as a new scan record. Checks run in
// a fixed order and the first failure is returned as a *ValidationError.
func (service *CoreService) SubmitScan(ctx context.Context, candidate Candidate) (*database.ScanRecord, error) {
	c := candidate.normalized()
	if err := service.validate(c); err != nil {
		slog.Debug("scan upload rejected", "error", err)
		service.metrics.Upload(metrics.ResultRejected)
		return nil, err
	}

	record := &database.ScanRecord{
		ID:          database.NewID(),
		PatientName: c.PatientName,
		PatientID:   c.PatientID,
		ScanType:    c.ScanType,
		Region:      c.Region,
		UploadDate:  service.now().UTC(),
		ImageType:   c.Image.declaredType(),
		Image:       c.Image.Data,
	}
	record.ImageURL = ImageURL(record.ID)

	if err := service.store.Append(ctx, record); err != nil {
		slog.Error("failed to store scan", "scan_id", record.ID, "error", err)
		service.metrics.Upload(metrics.ResultFailed)
		return nil, err
	}
	service.metrics.Upload(metrics.ResultSuccess)
	slog.Info("scan stored", "scan_id", record.ID, "scan_type", record.ScanType, "region", record.Region)
	return record, nil
}

func (service *CoreService) validate(c Candidate) error {
	if err := service.validator.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			return &ValidationError{Field: fieldErrors[0].Field(), Reason: ErrMissingField}
		}
		return &ValidationError{Reason: ErrMissingField}
	}

	declared := c.Image.declaredType()
	if !imaging.IsSupportedType(declared) {
		return &ValidationError{Field: "image", Reason: ErrUnsupportedImageType}
	}
	if !IsKnownScanType(c.ScanType) {
		return &ValidationError{Field: "scanType", Reason: ErrUnsupportedScanType}
	}
	if !IsKnownRegion(c.Region) {
		return &ValidationError{Field: "region", Reason: ErrUnsupportedRegion}
	}
	if actual, err := imaging.DetectType(c.Image.Data); err != nil || actual != declared {
		return &ValidationError{Field: "image", Reason: ErrUnsupportedImageType}
	}
	if limit := service.config.Upload.MaxImageBytes; limit > 0 && int64(len(c.Image.Data)) > limit {
		return &ValidationError{Field: "image", Reason: ErrImageTooLarge}
	}
	if err := imaging.Verify(c.Image.Data, service.config.Upload.MaxImagePixels); err != nil {
		if errors.Is(err, imaging.ErrTooManyPixels) {
			return &ValidationError{Field: "image", Reason: ErrImageDimensions}
		}
		return &ValidationError{Field: "image", Reason: ErrUnsupportedImageType}
	}
	return nil
}

// ListScans returns every scan in upload order.
func (service *CoreService) ListScans(ctx context.Context) ([]*database.ScanRecord, error) {
	return service.store.ListAll(ctx)
}

func (service *CoreService) GetScan(ctx context.Context, id string) (*database.ScanRecord, error) {
	return service.store.GetByID(ctx, id)
}

// ExportScan renders the one-page report for a record. Stored data is never modified.
func (service *CoreService) ExportScan(_ context.Context, record *database.ScanRecord) (*report.Document, error) {
	doc, err := service.renderer.Render(record)
	if err != nil {
		slog.Error("failed to export scan", "scan_id", record.ID, "error", err)
		service.metrics.Export(metrics.ResultFailed)
		return nil, err
	}
	service.metrics.Export(metrics.ResultSuccess)
	return doc, nil
}

func (service *CoreService) ExportScanByID(ctx context.Context, id string) (*report.Document, error) {
	record, err := service.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return service.ExportScan(ctx, record)
}

// Thumbnail returns a PNG preview of the scan image at the configured width.
func (service *CoreService) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	record, err := service.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(record.Image, service.config.ThumbnailWidth)
}

func (service *CoreService) Close() error {
	return service.store.Close()
}

// ImageURL is the stable path a scan image is served from.
func ImageURL(id string) string {
	return "/scans/" + id + "/image"
}
