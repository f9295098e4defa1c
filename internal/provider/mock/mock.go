package mock

import (
	"context"
	"crypto/sha256"
	"math"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

// minImageBytes: anything smaller is treated as a photo with no face
const minImageBytes = 1000

// Provider implementa provider.DescriptorProvider para testes e desenvolvimento
type Provider struct {
	initCalls atomic.Int64
}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Initialize is always successful
func (p *Provider) Initialize(ctx context.Context) error {
	p.initCalls.Add(1)
	return ctx.Err()
}

// InitCalls reports how many times Initialize ran
func (p *Provider) InitCalls() int64 {
	return p.initCalls.Load()
}

func (p *Provider) Fingerprint() string {
	return "mock/sha256"
}

// DetectDescriptor gera descriptor determinístico baseado no hash da imagem
func (p *Provider) DetectDescriptor(ctx context.Context, image []byte) (domain.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) < minImageBytes {
		return nil, provider.ErrNoFace
	}
	return Descriptor(image), nil
}

// Descriptor returns the unit vector the mock assigns to image
func Descriptor(image []byte) domain.Descriptor {
	hash := sha256.Sum256(image)
	d := make(domain.Descriptor, domain.DescriptorDimension)
	hashLen := len(hash)

	for i := range d {
		// mix the position in so repeated hash bytes do not repeat values
		b := hash[i%hashLen] ^ byte(i/hashLen*37)
		d[i] = (float64(b)/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range d {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return d
	}

	for i := range d {
		d[i] /= norm
	}

	return d
}

var _ provider.DescriptorProvider = (*Provider)(nil)
