package request

import (
	"time"

	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/environment"
)

// Priority values are stable small integers persisted with the request.
type Priority int

const (
	PriorityEmergency Priority = 1
	PriorityHigh      Priority = 2
	PriorityNormal    Priority = 3
	PriorityLow       Priority = 4
)

// Kind tags the request payload variant. Lifecycle logic operates on the
// common envelope; kind-specific behavior dispatches on this tag.
type Kind string

const (
	KindTransportation    Kind = "transportation"
	KindNavigation        Kind = "navigation"
	KindDefaultNavigation Kind = "default_navigation"
	KindGuidance          Kind = "guidance"
	KindDisinfection      Kind = "disinfection"
	KindCharging          Kind = "charging"
	KindStopCharging      Kind = "stop_charging"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTransportation, KindNavigation, KindDefaultNavigation,
		KindGuidance, KindDisinfection, KindCharging, KindStopCharging:
		return true
	}
	return false
}

// RepetitionPattern bounds how often a repetitive request re-derives tasks.
type RepetitionPattern struct {
	Until   *time.Time `yaml:"until,omitempty" json:"until,omitempty"`
	Count   int        `yaml:"count,omitempty" json:"count,omitempty"`
	OpenEnd bool       `yaml:"open_end,omitempty" json:"open_end,omitempty"`
}

// TransportationPayload carries a load between two locations.
type TransportationPayload struct {
	PickupLocation        environment.Position `yaml:"pickup_location" json:"pickup_location"`
	PickupLocationLevel   int                  `yaml:"pickup_location_level" json:"pickup_location_level"`
	DeliveryLocation      environment.Position `yaml:"delivery_location" json:"delivery_location"`
	DeliveryLocationLevel int                  `yaml:"delivery_location_level" json:"delivery_location_level"`
	EarliestPickupTime    time.Time            `yaml:"earliest_pickup_time" json:"earliest_pickup_time"`
	LatestPickupTime      time.Time            `yaml:"latest_pickup_time" json:"latest_pickup_time"`
	LoadType              string               `yaml:"load_type,omitempty" json:"load_type,omitempty"`
	LoadID                string               `yaml:"load_id,omitempty" json:"load_id,omitempty"`
}

// NavigationPayload sends a robot to a goal, optionally waiting there.
// Guidance and default navigation share this shape.
type NavigationPayload struct {
	StartLocation       environment.Position `yaml:"start_location" json:"start_location"`
	GoalLocation        environment.Position `yaml:"goal_location" json:"goal_location"`
	EarliestArrivalTime time.Time            `yaml:"earliest_arrival_time" json:"earliest_arrival_time"`
	LatestArrivalTime   time.Time            `yaml:"latest_arrival_time" json:"latest_arrival_time"`
	WaitAtGoal          float64              `yaml:"wait_at_goal,omitempty" json:"wait_at_goal,omitempty"`
}

// Disinfection dose levels, stable small integers.
type Dose int

const (
	DoseUnspecified Dose = 0
	DoseLow         Dose = 1
	DoseNormal      Dose = 2
	DoseHigh        Dose = 3
)

func (d Dose) Valid() bool {
	return d >= DoseLow && d <= DoseHigh
}

// DisinfectionPayload covers an area with UVC radiation.
type DisinfectionPayload struct {
	Area              string    `yaml:"area" json:"area"`
	Dose              Dose      `yaml:"dose" json:"dose"`
	EarliestStartTime time.Time `yaml:"earliest_start_time" json:"earliest_start_time"`
	LatestStartTime   time.Time `yaml:"latest_start_time" json:"latest_start_time"`
}

// ChargingPayload sends a specific robot to (or away from) a charging station.
type ChargingPayload struct {
	RobotID           string    `yaml:"robot_id" json:"robot_id"`
	EarliestStartTime time.Time `yaml:"earliest_start_time" json:"earliest_start_time"`
	LatestStartTime   time.Time `yaml:"latest_start_time" json:"latest_start_time"`
}

// TaskRequest is the intake envelope from which tasks are derived. Exactly
// one payload field matching Kind is set.
type TaskRequest struct {
	RequestID       uuid.UUID          `yaml:"request_id" json:"request_id"`
	UserID          string             `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	Kind            Kind               `yaml:"kind" json:"kind"`
	TaskIDs         []uuid.UUID        `yaml:"task_ids,omitempty" json:"task_ids,omitempty"`
	Priority        Priority           `yaml:"priority" json:"priority"`
	HardConstraints bool               `yaml:"hard_constraints" json:"hard_constraints"`
	EligibleRobots  []string           `yaml:"eligible_robots,omitempty" json:"eligible_robots,omitempty"`
	Map             string             `yaml:"map,omitempty" json:"map,omitempty"`
	Valid           bool               `yaml:"valid" json:"valid"`
	Repetition      *RepetitionPattern `yaml:"repetition_pattern,omitempty" json:"repetition_pattern,omitempty"`
	EventUID        *uuid.UUID         `yaml:"event_uid,omitempty" json:"event_uid,omitempty"`

	Transportation *TransportationPayload `yaml:"transportation,omitempty" json:"transportation,omitempty"`
	Navigation     *NavigationPayload     `yaml:"navigation,omitempty" json:"navigation,omitempty"`
	Disinfection   *DisinfectionPayload   `yaml:"disinfection,omitempty" json:"disinfection,omitempty"`
	Charging       *ChargingPayload       `yaml:"charging,omitempty" json:"charging,omitempty"`
}

// New creates a request envelope with a fresh identity and normal priority.
func New(kind Kind) *TaskRequest {
	return &TaskRequest{
		RequestID:       uuid.New(),
		Kind:            kind,
		Priority:        PriorityNormal,
		HardConstraints: true,
		Valid:           true,
	}
}

// EarliestStartTime resolves the kind-specific alias for the start of the
// primary temporal window (pickup time for transportation, arrival time for
// navigation kinds).
func (r *TaskRequest) EarliestStartTime() time.Time {
	switch r.Kind {
	case KindTransportation:
		if r.Transportation != nil {
			return r.Transportation.EarliestPickupTime
		}
	case KindNavigation, KindDefaultNavigation, KindGuidance:
		if r.Navigation != nil {
			return r.Navigation.EarliestArrivalTime
		}
	case KindDisinfection:
		if r.Disinfection != nil {
			return r.Disinfection.EarliestStartTime
		}
	case KindCharging, KindStopCharging:
		if r.Charging != nil {
			return r.Charging.EarliestStartTime
		}
	}
	return time.Time{}
}

// LatestStartTime resolves the kind-specific alias for the end of the
// primary temporal window.
func (r *TaskRequest) LatestStartTime() time.Time {
	switch r.Kind {
	case KindTransportation:
		if r.Transportation != nil {
			return r.Transportation.LatestPickupTime
		}
	case KindNavigation, KindDefaultNavigation, KindGuidance:
		if r.Navigation != nil {
			return r.Navigation.LatestArrivalTime
		}
	case KindDisinfection:
		if r.Disinfection != nil {
			return r.Disinfection.LatestStartTime
		}
	case KindCharging, KindStopCharging:
		if r.Charging != nil {
			return r.Charging.LatestStartTime
		}
	}
	return time.Time{}
}

// StartLocation is where execution begins for this request kind.
func (r *TaskRequest) StartLocation() environment.Position {
	switch r.Kind {
	case KindTransportation:
		if r.Transportation != nil {
			return r.Transportation.PickupLocation
		}
	case KindNavigation, KindDefaultNavigation, KindGuidance:
		if r.Navigation != nil {
			return r.Navigation.StartLocation
		}
	}
	return environment.Position{}
}

// FinishLocation is where execution ends for this request kind.
func (r *TaskRequest) FinishLocation() environment.Position {
	switch r.Kind {
	case KindTransportation:
		if r.Transportation != nil {
			return r.Transportation.DeliveryLocation
		}
	case KindNavigation, KindDefaultNavigation, KindGuidance:
		if r.Navigation != nil {
			return r.Navigation.GoalLocation
		}
	}
	return environment.Position{}
}

// DefaultCapabilities lists the robot capabilities a task derived from this
// request requires.
func (r *TaskRequest) DefaultCapabilities() []string {
	switch r.Kind {
	case KindTransportation:
		return []string{"navigation", "docking"}
	case KindGuidance:
		return []string{"navigation", "guidance"}
	case KindDisinfection:
		return []string{"navigation", "uvc-radiation"}
	default:
		return []string{"navigation"}
	}
}

// IsRecurrent reports whether the request was derived from a calendar event.
func (r *TaskRequest) IsRecurrent() bool {
	return r.EventUID != nil
}

// IsRepetitive reports whether the request carries a repetition pattern.
func (r *TaskRequest) IsRepetitive() bool {
	return r.Repetition != nil
}

// Repeat decides whether another task should be derived from this request,
// given the estimated finish time of the next repetition.
func (r *TaskRequest) Repeat(estimatedFinishTime time.Time, now time.Time) bool {
	if r.Repetition == nil {
		return false
	}
	if r.Repetition.Until != nil {
		if now.Before(*r.Repetition.Until) && estimatedFinishTime.Before(*r.Repetition.Until) {
			return true
		}
	}
	if r.Repetition.Count > 0 && len(r.TaskIDs) < r.Repetition.Count {
		return true
	}
	return r.Repetition.OpenEnd
}

// AddTaskID records a task derived from this request.
func (r *TaskRequest) AddTaskID(taskID uuid.UUID) {
	r.TaskIDs = append(r.TaskIDs, taskID)
}

// MarkInvalid flags the request as rejected by intake validation.
func (r *TaskRequest) MarkInvalid() {
	r.Valid = false
}

// CommonFields copies the envelope fields shared between a request and a
// re-derived successor, leaving identity and task bookkeeping fresh. The
// repetition pattern and event linkage stay behind: the successor is a
// one-off, not another iteration of the originating series.
func (r *TaskRequest) CommonFields(kind Kind) *TaskRequest {
	succ := New(kind)
	succ.UserID = r.UserID
	succ.Priority = r.Priority
	succ.HardConstraints = r.HardConstraints
	succ.EligibleRobots = append([]string(nil), r.EligibleRobots...)
	succ.Map = r.Map
	succ.Transportation = r.Transportation
	succ.Navigation = r.Navigation
	succ.Disinfection = r.Disinfection
	succ.Charging = r.Charging
	return succ
}
