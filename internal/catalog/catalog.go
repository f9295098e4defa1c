package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

//go:embed celebrities.yaml
var defaultDataset []byte

var (
	ErrEmpty       = errors.New("catalog has no celebrities")
	ErrInvalid     = errors.New("invalid catalog record")
	ErrDuplicateID = errors.New("duplicate celebrity id")
)

// Catalog is the immutable, ordered list of celebrities
type Catalog struct {
	records []domain.Celebrity
	byID    map[string]int
}

// Load reads a YAML catalog from path. An empty path loads the built-in dataset.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")

	var provider koanf.Provider
	if path == "" {
		provider = rawbytes.Provider(defaultDataset)
	} else {
		provider = file.Provider(path)
	}

	if err := k.Load(provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var records []domain.Celebrity
	if err := k.UnmarshalWithConf("celebrities", &records, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return New(records)
}

// New validates records and builds a Catalog preserving their order
func New(records []domain.Celebrity) (*Catalog, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{
		records: make([]domain.Celebrity, 0, len(records)),
		byID:    make(map[string]int, len(records)),
	}

	for i, r := range records {
		r.ID = strings.TrimSpace(r.ID)
		r.Name = strings.TrimSpace(r.Name)
		r.ImageRef = strings.TrimSpace(r.ImageRef)

		switch {
		case r.ID == "":
			return nil, fmt.Errorf("%w: record %d has no id", ErrInvalid, i)
		case r.Name == "":
			return nil, fmt.Errorf("%w: record %q has no name", ErrInvalid, r.ID)
		case r.ImageRef == "":
			return nil, fmt.Errorf("%w: record %q has no image_ref", ErrInvalid, r.ID)
		}

		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}

		c.byID[r.ID] = len(c.records)
		c.records = append(c.records, r)
	}

	return c, nil
}

// Records returns a copy of the catalog in order
func (c *Catalog) Records() []domain.Celebrity {
	out := make([]domain.Celebrity, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Catalog) Get(id string) (domain.Celebrity, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Celebrity{}, false
	}
	return c.records[i], true
}

func (c *Catalog) Len() int {
	return len(c.records)
}
