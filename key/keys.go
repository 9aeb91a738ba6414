// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Backup Registries - these keys govern retention caps for each backup registry kind.
const (
	BackupsUpdateCap      = "backups.update_cap"
	BackupsManualCap      = "backups.manual_cap"
	BackupsConfigCap      = "backups.config_cap"
	BackupsPreRollbackCap = "backups.pre_rollback_cap"
)

// Update Orchestration - these keys configure the fast-forward update workflow.
const (
	UpdateRemoteEndpoint = "update.remote_endpoint"
	UpdateRemoteTimeout  = "update.remote_timeout_seconds"
	UpdateBranch         = "update.branch"
)

// Rollback Behavior - these keys configure the destructive rollback workflow.
const (
	RollbackReapplySafetyOnHealthFailure = "rollback.reapply_safety_on_health_failure"
)

// Health Validation - these keys configure the external post-operation validation gate.
const (
	HealthCommand        = "health.command"
	HealthTimeoutSeconds = "health.timeout_seconds"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Diagnostic Logging - these keys configure the persistent logging subsystem.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// Command-Line Interface - these keys define global CLI presentation behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
