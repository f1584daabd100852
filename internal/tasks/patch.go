package tasks

import (
	"errors"
	"fmt"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrSeriesEnded  = errors.New("recurring series has ended")
	ErrNotRecurring = errors.New("task is not recurring")
	ErrInvalid      = errors.New("invalid task field")
)

// DefaultTitle is used when a task is created without one.
const DefaultTitle = "Untitled Task"

// Patch is a partial update. A nil field means "not supplied".
type Patch struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	Urgency     *Level              `json:"urgency,omitempty"`
	Importance  *Level              `json:"importance,omitempty"`
	Status      *Status             `json:"status,omitempty"`
	Date        *string             `json:"date,omitempty"`
	Frequency   *calendar.Frequency `json:"frequency,omitempty"`
}

// Validate rejects values outside the model's enumerations.
func (p Patch) Validate() error {
	if p.Urgency != nil && !p.Urgency.Valid() {
		return fmt.Errorf("%w: urgency %q", ErrInvalid, *p.Urgency)
	}
	if p.Importance != nil && !p.Importance.Valid() {
		return fmt.Errorf("%w: importance %q", ErrInvalid, *p.Importance)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalid, *p.Status)
	}
	if p.Frequency != nil && !p.Frequency.Valid() {
		return fmt.Errorf("%w: frequency %q", ErrInvalid, *p.Frequency)
	}
	if p.Date != nil {
		if _, err := calendar.ParseDate(*p.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// IsEmpty reports whether no field was supplied.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Urgency == nil && p.Importance == nil &&
		p.Status == nil && p.Date == nil && p.Frequency == nil
}

// SaveOptions carries the editor context of a save.
type SaveOptions struct {
	// ContextDate is the occurrence the editor was opened on. Zero means today.
	ContextDate time.Time
	// RecordCompletion writes Patch.Status into the completion ledger under the
	// period of ContextDate when the task is recurring.
	RecordCompletion bool
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
