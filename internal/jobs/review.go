package jobs

import (
	"slices"
	"strings"

	"overlaystudio/internal/overlay"
)

// ReviewMode names how the cursor walks the plan. Only sequential review exists.
const ReviewMode = "sequential"

// ReviewAction is a reviewer decision for the overlay under the cursor.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionSkip    ReviewAction = "skip"
)

// ParseReviewAction accepts approve, reject or skip in any case. Blank input
// means approve.
func ParseReviewAction(value string) (ReviewAction, error) {
	switch action := ReviewAction(strings.ToLower(strings.TrimSpace(value))); action {
	case "":
		return ActionApprove, nil
	case ActionApprove, ActionReject, ActionSkip:
		return action, nil
	default:
		return "", ErrInvalidAction
	}
}

// ReviewState is the sequential review cursor over the overlay plan.
type ReviewState struct {
	Mode         string   `json:"mode"`
	CurrentIndex int      `json:"currentIndex"`
	ApprovedIDs  []string `json:"approvedIds"`
	RejectedIDs  []string `json:"rejectedIds"`
	Completed    bool     `json:"completed"`
}

// NewReviewState starts a cursor at the first overlay. An empty plan has
// nothing to review and starts completed.
func NewReviewState(plan []overlay.Event) ReviewState {
	return ReviewState{
		Mode:        ReviewMode,
		ApprovedIDs: []string{},
		RejectedIDs: []string{},
		Completed:   len(plan) == 0,
	}
}

// Advance records action for the overlay under the cursor and moves the cursor
// forward. Once the end is reached the cursor stays on the last overlay.
func (r ReviewState) Advance(action ReviewAction, plan []overlay.Event) (ReviewState, error) {
	if len(plan) == 0 {
		return r, ErrNothingToReview
	}
	switch action {
	case ActionApprove, ActionReject, ActionSkip:
	default:
		return r, ErrInvalidAction
	}

	next := r.clone()
	next.Mode = ReviewMode
	current := max(0, min(r.CurrentIndex, len(plan)-1))
	if id := plan[current].ID; id != "" {
		switch action {
		case ActionApprove:
			if !slices.Contains(next.ApprovedIDs, id) {
				next.ApprovedIDs = append(next.ApprovedIDs, id)
			}
		case ActionReject, ActionSkip:
			if !slices.Contains(next.RejectedIDs, id) {
				next.RejectedIDs = append(next.RejectedIDs, id)
			}
		}
	}

	following := min(current+1, len(plan))
	next.Completed = following >= len(plan)
	if next.Completed {
		next.CurrentIndex = len(plan) - 1
	} else {
		next.CurrentIndex = following
	}
	return next, nil
}

func (r ReviewState) clone() ReviewState {
	r.ApprovedIDs = append([]string{}, r.ApprovedIDs...)
	r.RejectedIDs = append([]string{}, r.RejectedIDs...)
	return r
}
