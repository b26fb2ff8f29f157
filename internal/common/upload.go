package common

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/labstack/echo/v4"
)

const ImageField = "image"

// CandidateFromRequest reads the multipart upload form. A missing file leaves
// Candidate.Image nil so validation reports it as a missing field. At most limit+1
// bytes of the file are read; limit <= 0 reads everything.
func CandidateFromRequest(ctx echo.Context, limit int64) (core.Candidate, error) {
	candidate := core.Candidate{
		PatientName: ctx.FormValue("patientName"),
		PatientID:   ctx.FormValue("patientId"),
		ScanType:    ctx.FormValue("scanType"),
		Region:      ctx.FormValue("region"),
	}

	file, err := ctx.FormFile(ImageField)
	if errors.Is(err, http.ErrMissingFile) {
		return candidate, nil
	}
	if err != nil {
		return candidate, fmt.Errorf("failed to read upload form: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return candidate, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr)
		}
	}()

	var reader io.Reader = src
	if limit > 0 {
		reader = io.LimitReader(src, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return candidate, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	candidate.Image = &core.ImagePayload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Data:        data,
	}
	return candidate, nil
}
