package common

// Modes for files that hold secrets and the directories containing them.
const (
	FilePermissionSecure = 0o600
	DirPermissionSecure  = 0o700
)
