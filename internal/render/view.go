package render

import (
	"context"
	"errors"
	"time"

	"market_board/internal/items"

	"github.com/rs/zerolog/log"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeNoData
	OutcomeFailed
)

// Status is the refresh state shown next to the table. FirstLoad holds until
// a refresh has produced data.
type Status struct {
	Phase       Phase
	Outcome     Outcome
	FirstLoad   bool
	LastUpdated time.Time
	Err         error
}

// ShowTable reports whether the table should be drawn. It stays hidden until
// data has loaded, including after a failed first load.
func (s Status) ShowTable() bool {
	return !s.FirstLoad
}

func (s Status) Text() string {
	if s.Phase == PhaseLoading {
		return "Updating..."
	}
	switch s.Outcome {
	case OutcomeSuccess:
		return "Last updated: " + s.LastUpdated.Local().Format("2006-01-02 15:04:05")
	case OutcomeNoData:
		return "No data"
	case OutcomeFailed:
		return "Update failed!"
	}
	return ""
}

type Row struct {
	Item     items.Item
	Owned    bool
	ImageURL string
	Changed  bool
}

// View is one rendering of the projection. Changed rows are highlighted for
// this view only.
type View struct {
	Rows   []Row
	Status Status
	Total  int
}

type Renderer interface {
	Render(ctx context.Context, v View) error
}

// Multi renders to every renderer; a failing renderer does not stop the rest.
type Multi []Renderer

func (m Multi) Render(ctx context.Context, v View) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(ctx, v); err != nil {
			log.Warn().Err(err).Msg("Renderer failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
