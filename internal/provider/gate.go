package provider

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// GatedProvider asks a FaceDetector whether an image holds a face above the
// confidence threshold before spending an embedding call on it.
type GatedProvider struct {
	detector FaceDetector
	next     DescriptorProvider
	opts     DetectorOptions
}

// NewGatedProvider wraps next with a detection gate
func NewGatedProvider(detector FaceDetector, next DescriptorProvider, opts DetectorOptions) *GatedProvider {
	return &GatedProvider{
		detector: detector,
		next:     next,
		opts:     opts,
	}
}

func (g *GatedProvider) Initialize(ctx context.Context) error {
	return g.next.Initialize(ctx)
}

func (g *GatedProvider) DetectDescriptor(ctx context.Context, image []byte) (domain.Descriptor, error) {
	faces, err := g.detector.DetectFaces(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}

	if MostProminent(faces, g.opts.MinConfidence) < 0 {
		return nil, ErrNoFace
	}

	return g.next.DetectDescriptor(ctx, image)
}

// Fingerprint is the wrapped provider's; the gate never changes descriptors
func (g *GatedProvider) Fingerprint() string {
	return FingerprintOf(g.next)
}

var _ DescriptorProvider = (*GatedProvider)(nil)
