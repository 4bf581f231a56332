package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder marks (user, event) pairs completed.
type Recorder struct {
	repo Repository
	// now is swappable for tests
	now func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// MarkCompleted sets the row completed with a UTC timestamp. Marking an
// already-completed event again is a no-op in effect; completion is
// monotonic and never undone.
func (r *Recorder) MarkCompleted(ctx context.Context, userID, eventID uuid.UUID) error {
	if err := r.repo.MarkCompleted(ctx, userID, eventID, r.now().UTC()); err != nil {
		return fmt.Errorf("mark event completed: %w", err)
	}
	return nil
}
