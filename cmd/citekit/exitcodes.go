package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable config or registry)
	ExitDataError   = 3 // Data error (unreadable corpus or source, invalid range)
	ExitUnresolved  = 4 // --strict and some citations could not be resolved
	ExitNotFound    = 5 // index lookup found no entry
)
