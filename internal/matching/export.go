package matching

import (
	"encoding/json"
	"io"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// ExportedDescriptor is one celebrity with its descriptor, as written by
// the descriptor export tool.
type ExportedDescriptor struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ImageRef   string            `json:"image_ref"`
	Descriptor domain.Descriptor `json:"descriptor"`
}

// Export lists the snapshot in catalog order
func Export(snap *Snapshot) []ExportedDescriptor {
	entries := snap.Entries()
	out := make([]ExportedDescriptor, 0, len(entries))
	for _, e := range entries {
		c, ok := snap.Celebrity(e.CelebrityID)
		if !ok {
			continue
		}
		out = append(out, ExportedDescriptor{
			ID:         c.ID,
			Name:       c.Name,
			ImageRef:   c.ImageRef,
			Descriptor: e.Descriptor,
		})
	}
	return out
}

// WriteExport writes Export(snap) as an indented JSON array
func WriteExport(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export(snap))
}
