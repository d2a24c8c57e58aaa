// Package core implements the engine supervisor behind the enginectl
// package: launching the engine detached and recording its handle, stopping
// it by handle or by command-line scan, reporting its status, and running it
// in the foreground with health probes.
//
// Every launch is recorded in a SQLite registry under the state directory,
// and launches and stops from concurrent invocations are serialized by a
// file lock in the same directory.
package core
