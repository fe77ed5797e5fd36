// Package logging provides leveled logging for the tagify server.
//
// The log level is read from the LOG_LEVEL environment variable
// (debug, info, warn, error) at startup; setting DEBUG=true forces
// debug output regardless of LOG_LEVEL.
package logging
