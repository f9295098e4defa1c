package matching

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

// fakeFetcher returns the reference itself as image bytes
type fakeFetcher struct {
	fail map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err, ok := f.fail[ref]; ok {
		return nil, err
	}
	return []byte(ref), nil
}

// fakeProvider answers by image content
type fakeProvider struct {
	mu          sync.Mutex
	descriptors map[string]domain.Descriptor
	errs        map[string]error
	delays      map[string]time.Duration
	initErr     error

	initCalls atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		descriptors: map[string]domain.Descriptor{},
		errs:        map[string]error{},
		delays:      map[string]time.Duration{},
	}
}

func (p *fakeProvider) Initialize(ctx context.Context) error {
	p.initCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initErr
}

func (p *fakeProvider) setInitErr(err error) {
	p.mu.Lock()
	p.initErr = err
	p.mu.Unlock()
}

func (p *fakeProvider) set(ref string, d domain.Descriptor) {
	p.mu.Lock()
	p.descriptors[ref] = d
	delete(p.errs, ref)
	p.mu.Unlock()
}

func (p *fakeProvider) setErr(ref string, err error) {
	p.mu.Lock()
	p.errs[ref] = err
	p.mu.Unlock()
}

func (p *fakeProvider) DetectDescriptor(ctx context.Context, image []byte) (domain.Descriptor, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxFlight.Load()
		if n <= m || p.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}

	ref := string(image)
	p.mu.Lock()
	delay := p.delays[ref]
	err := p.errs[ref]
	d, ok := p.descriptors[ref]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, provider.ErrNoFace
	}
	return d, nil
}

// unit returns a descriptor that is zero except for position i
func unit(i int, v float64) domain.Descriptor {
	d := make(domain.Descriptor, domain.DescriptorDimension)
	d[i%domain.DescriptorDimension] = v
	return d
}

func celebrities(n int) []domain.Celebrity {
	out := make([]domain.Celebrity, n)
	for i := range out {
		out[i] = domain.Celebrity{
			ID:       fmt.Sprintf("c%d", i+1),
			Name:     fmt.Sprintf("Celebrity %d", i+1),
			ImageRef: fmt.Sprintf("img-%d", i+1),
		}
	}
	return out
}

// providerFor registers a distinct descriptor for every record
func providerFor(records []domain.Celebrity) *fakeProvider {
	p := newFakeProvider()
	for i, r := range records {
		p.set(r.ImageRef, unit(i, 1))
	}
	return p
}

type staticCatalog []domain.Celebrity

func (c staticCatalog) Records() []domain.Celebrity {
	out := make([]domain.Celebrity, len(c))
	copy(out, c)
	return out
}
