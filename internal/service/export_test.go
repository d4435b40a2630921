package service

// ExportedBuildGuard lets service_test drive the guard directly.
type ExportedBuildGuard = buildGuard
