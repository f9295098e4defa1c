package provider

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

var (
	// ErrNoFace is the expected "not found" outcome: the image was processed
	// but no face passed the detector thresholds.
	ErrNoFace = errors.New("no face detected")

	// ErrModelLoad means the provider could not be initialized.
	ErrModelLoad = errors.New("face model load failed")

	// ErrDetection is a hard failure processing one image (network, decoding, inference).
	ErrDetection = errors.New("face detection failed")

	// ErrInvalidImage means the bytes are not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
)

// DescriptorProvider produces face descriptors for images.
type DescriptorProvider interface {
	// Initialize loads the underlying model. It is idempotent: once it has
	// succeeded, further calls return immediately. A failed call does not
	// latch, so callers may retry.
	Initialize(ctx context.Context) error

	// DetectDescriptor returns the descriptor of the single most prominent face.
	// Returns ErrNoFace when nothing passes the thresholds.
	DetectDescriptor(ctx context.Context, image []byte) (domain.Descriptor, error)
}

// Fingerprinter names the descriptor space a provider produces. Descriptors
// are only comparable when their fingerprints are equal.
type Fingerprinter interface {
	Fingerprint() string
}

// FingerprintOf returns p's fingerprint, or "" when p does not report one
func FingerprintOf(p DescriptorProvider) string {
	if f, ok := p.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return ""
}

// FaceDetector locates faces without computing descriptors
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error)
}

// DetectorOptions tunes face detection.
type DetectorOptions struct {
	// MinConfidence in [0,1]; faces below it are ignored
	MinConfidence float64
	// InputSize is the resolution (longer side, pixels) images are
	// evaluated at when applying minimum face size rules
	InputSize int
}

// DefaultDetectorOptions mirrors the thresholds the catalog was calibrated with.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinConfidence: 0.5,
		InputSize:     320,
	}
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area of the box in the box's own units
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// MostProminent returns the index of the largest face whose confidence is at
// least minConfidence, or -1. Ties keep the earliest face.
func MostProminent(faces []DetectedFace, minConfidence float64) int {
	best := -1
	bestArea := 0.0
	for i, f := range faces {
		if f.Confidence < minConfidence {
			continue
		}
		if area := f.BoundingBox.Area(); best == -1 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}
