package resource

import "github.com/google/uuid"

// Kind names the cache a resource lives in.
type Kind string

const (
	KindTexture  Kind = "texture"
	KindMaterial Kind = "material"
	KindGeometry Kind = "geometry"
	KindModel    Kind = "model"
)

// Handle is a stable identifier for a cache entry. The zero Handle refers to nothing.
type Handle string

func NewHandle() Handle {
	return Handle(uuid.NewString())
}

func (h Handle) IsZero() bool {
	return h == ""
}

func (h Handle) String() string {
	if h == "" {
		return "<none>"
	}
	return string(h)
}

// Ref is a counted reference into one of the caches.
type Ref struct {
	Kind   Kind
	Handle Handle
}
