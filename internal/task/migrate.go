package task

import (
	"fmt"

	"github.com/kelo-robotics/fmlib/pkg/migrate"
)

// MigrationRules is the schema table driving deprecation of stored tasks.
// Required fields that are absent get nulled out; fields that no longer
// validate are dropped before the stripped record is archived.
var MigrationRules = []migrate.Rule{
	{Field: "task_id", Required: true, Validate: migrate.UUID()},
	{Field: "parent_task_id", Validate: migrate.UUID()},
	{Field: "request", Validate: migrate.Map()},
	{Field: "status", Required: true, Validate: migrate.Map()},
	{Field: "assigned_robots", Validate: migrate.List()},
	{Field: "plan", Validate: migrate.List()},
	{Field: "constraints", Required: true, Validate: migrate.Map()},
	{Field: "schedule", Validate: migrate.Map()},
	{Field: "eligible_robots", Validate: migrate.List()},
	{Field: "capabilities", Validate: migrate.List()},
	{Field: "timeout_time", Validate: migrate.Time()},
}

// StatusMigrationRules governs the standalone status records.
var StatusMigrationRules = []migrate.Rule{
	{Field: "task_id", Required: true, Validate: migrate.UUID()},
	{Field: "status", Required: true, Validate: func(v any) error {
		if err := migrate.IntRange(int(StatusUnallocated), int(StatusDeprecated))(v); err != nil {
			return fmt.Errorf("status: %w", err)
		}
		return nil
	}},
	{Field: "delayed", Validate: migrate.Bool()},
	{Field: "early", Validate: migrate.Bool()},
	{Field: "paused", Validate: migrate.Bool()},
	{Field: "recovery_method", Validate: migrate.IntRange(int(RecoverReallocate), int(RecoverCancel))},
	{Field: "progress", Validate: migrate.Map()},
}
