// Package proctable lists the processes on the host and selects the ones
// whose command line contains a given substring. On Linux it reads /proc
// through prometheus/procfs, which also yields start times and zombie state;
// elsewhere it falls back to mitchellh/go-ps, which only exposes executable
// names.
package proctable
