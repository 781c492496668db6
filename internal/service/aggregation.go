package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/repository"
)

// Aggregator folds admitted events into their session's summary.
type Aggregator struct {
	summaries *repository.SummaryRepository
}

// NewAggregator constructs an Aggregator.
func NewAggregator(summaries *repository.SummaryRepository) *Aggregator {
	return &Aggregator{summaries: summaries}
}

// Fold counts one admitted event of the given status at time at.
//
// The update runs as a compare-and-retry transaction on the session's
// summary, so concurrent folds never lose an increment. A missing summary is
// started from zero. uniquePresent and completed count ENTRY and EXIT events,
// not distinct students: a student who enters twice is counted twice.
func (a *Aggregator) Fold(ctx context.Context, sessionID string, status model.Status, at time.Time) (*model.Summary, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("fold: unknown status %q", status)
	}
	sum, err := a.summaries.Apply(ctx, sessionID, func(s *model.Summary) {
		s.Counts[status]++
		switch status {
		case model.StatusEntry:
			s.UniquePresent++
		case model.StatusExit:
			s.Completed++
		}
		s.UpdatedAt = at
	})
	if err != nil {
		return nil, fmt.Errorf("fold %s into %s: %w", status, sessionID, err)
	}
	return sum, nil
}
