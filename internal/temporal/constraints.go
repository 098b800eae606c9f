package temporal

import (
	"fmt"
	"math"
	"time"
)

// TimepointConstraint bounds an absolute timepoint to [EarliestTime, LatestTime].
// The pair is trusted to be pre-validated by request intake; no ordering check
// is performed here.
type TimepointConstraint struct {
	EarliestTime time.Time `yaml:"earliest_time" json:"earliest_time"`
	LatestTime   time.Time `yaml:"latest_time" json:"latest_time"`
}

func (c *TimepointConstraint) Update(earliest, latest time.Time) {
	c.EarliestTime = earliest
	c.LatestTime = latest
}

func (c *TimepointConstraint) String() string {
	return fmt.Sprintf("[%s, %s]", c.EarliestTime.Format(time.RFC3339), c.LatestTime.Format(time.RFC3339))
}

// EstimatedDuration is a normal estimate N(mean, variance) in seconds.
type EstimatedDuration struct {
	Mean     float64 `yaml:"mean" json:"mean"`
	Variance float64 `yaml:"variance" json:"variance"`
}

// Update stores mean and variance rounded to three decimals.
func (d *EstimatedDuration) Update(mean, variance float64) {
	d.Mean = round3(mean)
	d.Variance = round3(variance)
}

func (d *EstimatedDuration) StandardDev() float64 {
	return round3(math.Sqrt(d.Variance))
}

func (d *EstimatedDuration) String() string {
	return fmt.Sprintf("N(%v, %v)", d.Mean, d.StandardDev())
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// AlternativeTimeslot is a secondary temporal window, recorded only when a
// task could not be honored in its primary window.
type AlternativeTimeslot struct {
	Start  *TimepointConstraint `yaml:"start,omitempty" json:"start,omitempty"`
	Finish *TimepointConstraint `yaml:"finish,omitempty" json:"finish,omitempty"`
}

// TemporalConstraints aggregates the temporal bounds and duration estimates
// of a task.
type TemporalConstraints struct {
	Start                *TimepointConstraint `yaml:"start,omitempty" json:"start,omitempty"`
	Finish               *TimepointConstraint `yaml:"finish,omitempty" json:"finish,omitempty"`
	WorkTime             EstimatedDuration    `yaml:"work_time" json:"work_time"`
	TravelTime           EstimatedDuration    `yaml:"travel_time" json:"travel_time"`
	AlternativeTimeslot  *AlternativeTimeslot `yaml:"alternative_timeslot,omitempty" json:"alternative_timeslot,omitempty"`
}

// UpdateAlternativeStartTime lazily materializes the alternative timeslot
// wrapper before updating its start window. Callers must not assume the
// wrapper pre-exists.
func (c *TemporalConstraints) UpdateAlternativeStartTime(earliest, latest time.Time) {
	if c.AlternativeTimeslot == nil {
		c.AlternativeTimeslot = &AlternativeTimeslot{Start: &TimepointConstraint{}}
	}
	if c.AlternativeTimeslot.Start == nil {
		c.AlternativeTimeslot.Start = &TimepointConstraint{}
	}
	c.AlternativeTimeslot.Start.Update(earliest, latest)
}

// TaskConstraints wraps the constraint families of a task. Only temporal
// constraints are modeled today.
type TaskConstraints struct {
	Temporal TemporalConstraints `yaml:"temporal" json:"temporal"`
}
