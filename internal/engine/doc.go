// Package engine builds the command line of the external inference engine
// and manages one engine process: start, readiness polling against its HTTP
// health endpoint, detach, and stop.
package engine
