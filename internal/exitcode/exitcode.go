package exitcode

const (
	Success     = 0
	ConfigError = 1
	ConnError   = 1
	NoResources = 1
	RunError    = 1
)
