package catalog

import (
	"time"

	"github.com/mveselin/backbeat/internal/music"
)

// Record is a band as stored in the catalog: the domain value plus its
// row identity and bookkeeping timestamps.
type Record struct {
	ID        string     `json:"id"`
	Band      music.Band `json:"band"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
