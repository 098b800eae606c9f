package request

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelo-robotics/fmlib/internal/environment"
)

// ErrInvalidRequest is the root of the invalid-request error family. All
// members wrap it, so callers can match the family with errors.Is and the
// concrete reason with errors.As.
var ErrInvalidRequest = errors.New("invalid request")

// InvalidField names which aspect of the request failed validation.
type InvalidField string

const (
	InvalidTime     InvalidField = "time"
	InvalidLocation InvalidField = "location"
	InvalidArea     InvalidField = "area"
	InvalidMap      InvalidField = "map"
	InvalidDose     InvalidField = "dose"
	InvalidKind     InvalidField = "kind"
)

// InvalidRequestError reports a request rejected at intake. Msg embeds the
// offending value for diagnostics.
type InvalidRequestError struct {
	Field InvalidField
	Msg   string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request %s: %s", e.Field, e.Msg)
}

func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func invalidf(field InvalidField, format string, args ...any) error {
	return &InvalidRequestError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// PathPlanner is the location-validity collaborator. Path planning itself is
// out of scope; only the validity check is consumed here.
type PathPlanner interface {
	IsValidLocation(mapID string, location environment.Position) bool
}

// Validate checks the request against its temporal and spatial constraints.
// It is the intake boundary: constraints attached to a task afterwards are
// trusted without re-validation.
func (r *TaskRequest) Validate(planner PathPlanner, now time.Time) error {
	if !r.Kind.Valid() {
		return invalidf(InvalidKind, "%q is not a known request kind", r.Kind)
	}
	latest := r.LatestStartTime()
	earliest := r.EarliestStartTime()
	if latest.Before(now) {
		return invalidf(InvalidTime, "latest start time %s is in the past", latest.Format(time.RFC3339))
	}
	if latest.Before(earliest) {
		return invalidf(InvalidTime, "latest start time %s is earlier than the earliest start time %s",
			latest.Format(time.RFC3339), earliest.Format(time.RFC3339))
	}
	if r.Repetition != nil && r.Repetition.Until != nil && r.Repetition.Until.Before(now) {
		return invalidf(InvalidTime, "repetition until time %s is in the past", r.Repetition.Until.Format(time.RFC3339))
	}

	switch r.Kind {
	case KindTransportation:
		if r.Transportation == nil {
			return invalidf(InvalidKind, "transportation request carries no payload")
		}
		if planner != nil && !planner.IsValidLocation(r.Map, r.Transportation.PickupLocation) {
			return invalidf(InvalidLocation, "%s is not a valid pickup location", r.Transportation.PickupLocation.Name)
		}
		if planner != nil && !planner.IsValidLocation(r.Map, r.Transportation.DeliveryLocation) {
			return invalidf(InvalidLocation, "%s is not a valid delivery location", r.Transportation.DeliveryLocation.Name)
		}
		if r.Transportation.PickupLocation.Equal(r.Transportation.DeliveryLocation) {
			return invalidf(InvalidLocation, "pickup and delivery location are the same")
		}
	case KindNavigation, KindDefaultNavigation, KindGuidance:
		if r.Navigation == nil {
			return invalidf(InvalidKind, "navigation request carries no payload")
		}
		if planner != nil && !planner.IsValidLocation(r.Map, r.Navigation.GoalLocation) {
			return invalidf(InvalidLocation, "%s is not a valid goal location", r.Navigation.GoalLocation.Name)
		}
	case KindDisinfection:
		if r.Disinfection == nil {
			return invalidf(InvalidKind, "disinfection request carries no payload")
		}
		if !r.Disinfection.Dose.Valid() {
			return invalidf(InvalidDose, "%d is not a valid disinfection dose", r.Disinfection.Dose)
		}
		if r.Disinfection.Area == "" {
			return invalidf(InvalidArea, "%q is not a valid area", r.Disinfection.Area)
		}
	case KindCharging, KindStopCharging:
		if r.Charging == nil {
			return invalidf(InvalidKind, "charging request carries no payload")
		}
		if r.Repetition != nil {
			return invalidf(InvalidTime, "charging request cannot be repetitive")
		}
	}
	return nil
}
