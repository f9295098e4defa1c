package matching

import (
	"fmt"
	"sort"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// DefaultTopK is used when a caller asks for topK <= 0
const DefaultTopK = 3

// Engine ranks snapshot entries against a user descriptor. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	scale       ScoreScale
	defaultTopK int
}

func NewEngine(scale ScoreScale, defaultTopK int) (*Engine, error) {
	if !scale.Valid() {
		return nil, fmt.Errorf("invalid score scale %+v", scale)
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Engine{scale: scale, defaultTopK: defaultTopK}, nil
}

type ranked struct {
	entry    Entry
	distance float64
}

// Match returns at most topK results ordered by ascending distance. Equal
// distances keep catalog order. Any dimension mismatch fails the whole call.
func (e *Engine) Match(user domain.Descriptor, snap *Snapshot, topK int) ([]domain.MatchResult, error) {
	if snap == nil || snap.Len() == 0 {
		return nil, domain.ErrCacheNotReady
	}
	if topK <= 0 {
		topK = e.defaultTopK
	}

	candidates := make([]ranked, 0, snap.Len())
	for _, entry := range snap.entries {
		d, err := Euclidean(user, entry.Descriptor)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ranked{entry: entry, distance: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]domain.MatchResult, 0, topK)
	for _, c := range candidates[:topK] {
		rec := snap.records[c.entry.CelebrityID]
		results = append(results, domain.MatchResult{
			CelebrityID:     c.entry.CelebrityID,
			Name:            rec.Name,
			ImageRef:        rec.ImageRef,
			MatchPercentage: e.scale.Percentage(c.distance),
			Distance:        c.distance,
		})
	}

	return results, nil
}
