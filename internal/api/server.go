package api

import (
	"context"
	"time"

	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/progress"
	"github.com/vytor/lingoflash/internal/session"
)

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Loader reports whether the content store has been loaded.
type Loader interface {
	Loaded() bool
}

// RunnerView is the read side of the session runner. Stats includes
// reviews whose write-back is still buffered.
type RunnerView interface {
	Stats(now time.Time) models.ItemStats
	Pending() []session.Pending
}

// Server serves the operational and read-only JSON endpoints.
type Server struct {
	DB       Pinger
	Items    Loader
	Progress progress.Service
	Runner   RunnerView
	Now      func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
