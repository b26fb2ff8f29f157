package database

import "time"

// ScanRecord is one uploaded scan. Records are append-only: once stored they are
// never updated or deleted.
type ScanRecord struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patientName"`
	PatientID   string    `json:"patientId"`
	ScanType    string    `json:"scanType"`
	Region      string    `json:"region"`
	ImageURL    string    `json:"imageUrl"`
	UploadDate  time.Time `json:"uploadDate"`
	ImageType   string    `json:"imageType"` // MIME type of Image
	Image       []byte    `json:"image"`     // the scan itself, not a handle to it
}
