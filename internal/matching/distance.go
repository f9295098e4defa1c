package matching

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// Euclidean returns the L2 distance between two descriptors of equal length
func Euclidean(a, b domain.Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDescriptorShapeMismatch.WithError(
			fmt.Errorf("descriptor lengths %d and %d differ", len(a), len(b)))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
