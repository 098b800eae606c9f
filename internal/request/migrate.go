package request

import "github.com/kelo-robotics/fmlib/pkg/migrate"

// MigrationRules is the schema table driving deprecation of stored requests.
// Required fields that are absent get nulled out; fields that no longer
// validate are dropped before the stripped record is archived.
var MigrationRules = []migrate.Rule{
	{Field: "request_id", Required: true, Validate: migrate.UUID()},
	{Field: "user_id", Validate: migrate.String()},
	{Field: "kind", Required: true, Validate: func(v any) error {
		if err := migrate.String()(v); err != nil {
			return err
		}
		if !Kind(v.(string)).Valid() {
			return &InvalidRequestError{Field: InvalidKind, Msg: v.(string)}
		}
		return nil
	}},
	{Field: "task_ids", Validate: migrate.List()},
	{Field: "priority", Required: true, Validate: migrate.IntRange(int(PriorityEmergency), int(PriorityLow))},
	{Field: "hard_constraints", Required: true, Validate: migrate.Bool()},
	{Field: "eligible_robots", Validate: migrate.List()},
	{Field: "map", Validate: migrate.String()},
	{Field: "valid", Validate: migrate.Bool()},
	{Field: "repetition_pattern", Validate: migrate.Map()},
	{Field: "event_uid", Validate: migrate.UUID()},
	{Field: "transportation", Validate: migrate.Map()},
	{Field: "navigation", Validate: migrate.Map()},
	{Field: "disinfection", Validate: migrate.Map()},
	{Field: "charging", Validate: migrate.Map()},
}
