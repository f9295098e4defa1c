package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"sync"

	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

// minFaceSide is the smallest face side, in pixels at InputSize resolution,
// that is accepted as a face.
const minFaceSide = 20

// Provider implements provider.DescriptorProvider using DeepFace API
type Provider struct {
	client *Client
	opts   provider.DetectorOptions
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config, opts provider.DetectorOptions, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		client: NewClient(config),
		opts:   opts,
		logger: logger,
	}
}

// Initialize checks the DeepFace service is reachable. Only the first
// successful call talks to the service.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return nil
	}

	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrModelLoad, err)
	}

	p.ready = true
	p.logger.Info("deepface provider initialized",
		slog.String("base_url", p.client.config.BaseURL),
		slog.String("model", p.client.config.Model),
		slog.String("detector", p.client.config.Detector),
	)
	return nil
}

// DetectDescriptor returns the embedding of the most prominent face
func (p *Provider) DetectDescriptor(ctx context.Context, img []byte) (domain.Descriptor, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrDetection, provider.ErrInvalidImage)
	}

	resp, err := p.client.Represent(ctx, dataURI(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrDetection, err)
	}

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	candidates := make([]int, 0, len(resp.Results))
	for i, r := range resp.Results {
		if len(r.Embedding) == 0 {
			continue
		}
		if !p.largeEnough(r.FacialArea, cfg.Width, cfg.Height) {
			continue
		}
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(r.FacialArea.X),
				Y:      float64(r.FacialArea.Y),
				Width:  float64(r.FacialArea.W),
				Height: float64(r.FacialArea.H),
			},
			Confidence: r.FaceConfidence,
		})
		candidates = append(candidates, i)
	}

	best := provider.MostProminent(faces, p.opts.MinConfidence)
	if best < 0 {
		return nil, provider.ErrNoFace
	}

	return domain.Descriptor(resp.Results[candidates[best]].Embedding), nil
}

// largeEnough scales the face as if the image's longer side were InputSize
func (p *Provider) largeEnough(area FacialArea, width, height int) bool {
	if p.opts.InputSize <= 0 {
		return area.W > 0 && area.H > 0
	}
	longer := max(width, height)
	if longer <= 0 {
		return false
	}
	scale := float64(p.opts.InputSize) / float64(longer)
	side := float64(min(area.W, area.H)) * scale
	return side >= minFaceSide
}

// Fingerprint covers the model and the detector, which also decides the
// crop and alignment the model sees
func (p *Provider) Fingerprint() string {
	return "deepface/" + p.client.config.Model + "/" + p.client.config.Detector
}

func dataURI(img []byte) string {
	return "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}

var _ provider.DescriptorProvider = (*Provider)(nil)
