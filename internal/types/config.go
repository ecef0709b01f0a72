package types

// RunMode is the deployment mode of the service
type RunMode string

const (
	RunModeDevelopment RunMode = "development"
	RunModeProduction  RunMode = "production"
)

// LogLevel is the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
