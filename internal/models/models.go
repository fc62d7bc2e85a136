package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UploadedDocument is the raw upload of one request. It is never persisted.
type UploadedDocument struct {
	Filename string
	Content  []byte
}

// NormalizedImage is the single raster page produced from an upload.
// Path points inside the request's scratch arena and dies with it.
type NormalizedImage struct {
	Path   string
	Format string // png, jpeg, tiff ...
	Width  int
	Height int
}

// Point is an [x, y] pixel coordinate, origin top-left.
type Point [2]float64

// TextRegion is one detected line of text.
type TextRegion struct {
	Polygon    []Point `json:"coordinates"`
	Text       string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult keeps regions in engine order.
type ExtractionResult struct {
	Width   int
	Height  int
	Regions []TextRegion
	Text    string // region texts joined by "\n"
}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnalysisResult is the payload returned by POST /upload.
type AnalysisResult struct {
	RequestID           string       `json:"request_id"`
	ImageSize           ImageSize    `json:"image_size"`
	Content             []TextRegion `json:"content"`
	Type                string       `json:"type,omitempty"`
	ClassificationError string       `json:"classification_error,omitempty"`
}
