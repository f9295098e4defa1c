package domain

// DescriptorDimension is the length of every face descriptor produced by the
// configured embedding model. Descriptors of any other length are rejected.
const DescriptorDimension = 128

// Descriptor is a face embedding. Two descriptors are only comparable when
// they come from the same model.
type Descriptor []float64

// Clone returns an independent copy.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

// Celebrity is one catalog record. Identity is ID.
type Celebrity struct {
	ID       string `json:"id" koanf:"id"`
	Name     string `json:"name" koanf:"name"`
	ImageRef string `json:"image_ref" koanf:"image_ref"`
}
