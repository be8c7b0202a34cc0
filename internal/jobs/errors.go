package jobs

import (
	"fmt"

	"overlaystudio/internal/services"
)

var (
	// ErrNotFound indicates the job id is unknown to the store.
	ErrNotFound = fmt.Errorf("%w: job", services.ErrNotFound)
	// ErrIllegalTransition indicates a status move the state machine forbids.
	ErrIllegalTransition = fmt.Errorf("%w: illegal status transition", services.ErrConflict)
	// ErrRenderOutstanding indicates a render is already queued or running.
	ErrRenderOutstanding = fmt.Errorf("%w: render already in progress", services.ErrConflict)
	// ErrEditInProgress indicates a refine or visual override edit is still running.
	ErrEditInProgress = fmt.Errorf("%w: overlay edit already in progress", services.ErrConflict)
	// ErrNotAnalyzed indicates the analysis has not produced a reviewable plan yet.
	ErrNotAnalyzed = fmt.Errorf("%w: analysis is not ready, wait for stage %q", services.ErrConflict, StageReviewReady)
	// ErrNothingToRender indicates neither an overlay plan nor a scene plan is available.
	ErrNothingToRender = fmt.Errorf("%w: approve at least one overlay before rendering", services.ErrConflict)
	// ErrNothingToReview indicates the overlay plan is empty.
	ErrNothingToReview = fmt.Errorf("%w: no overlays to review", services.ErrConflict)
	// ErrInvalidAction indicates an unknown review action.
	ErrInvalidAction = fmt.Errorf("%w: review action must be approve, reject or skip", services.ErrValidation)
)
