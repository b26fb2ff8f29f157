package core

import (
	"mime"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const ScanTypeRGB = "RGB"

var (
	ScanTypes = []string{ScanTypeRGB}
	Regions   = []string{"Frontal", "Upper Arch", "Lower Arch"}
)

// ImagePayload is an uploaded file as received from the client.
type ImagePayload struct {
	Filename    string
	ContentType string
	Data        []byte `form:"image" validate:"required,min=1"`
}

// Candidate is an upload before validation.
type Candidate struct {
	PatientName string        `form:"patientName" validate:"required"`
	PatientID   string        `form:"patientId" validate:"required"`
	ScanType    string        `form:"scanType" validate:"required"`
	Region      string        `form:"region" validate:"required"`
	Image       *ImagePayload `form:"image" validate:"required"`
}

// normalized trims text fields so whitespace-only values count as empty, and puts
// them in NFC so equal names compare equal whatever the client sent.
func (c Candidate) normalized() Candidate {
	c.PatientName = normalizeText(c.PatientName)
	c.PatientID = normalizeText(c.PatientID)
	c.ScanType = normalizeText(c.ScanType)
	c.Region = normalizeText(c.Region)
	return c
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// declaredType is the media type without parameters, lower-cased.
func (p *ImagePayload) declaredType() string {
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(p.ContentType))
	}
	return mediaType
}

func IsKnownScanType(s string) bool {
	return slices.Contains(ScanTypes, s)
}

func IsKnownRegion(s string) bool {
	return slices.Contains(Regions, s)
}
