package main

// Exit codes
const (
	ExitSuccess            = 0 // Success
	ExitError              = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError        = 2 // Configuration error (bad cref.yaml, unsupported format)
	ExitDataError          = 3 // Data error (malformed store, schema validation failure)
	ExitVerificationFailed = 4 // Manuscript or link verification reported errors
)
