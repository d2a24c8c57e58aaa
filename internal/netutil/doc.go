// Package netutil checks whether the engine's listen address is free before
// a launch and maps wildcard listen hosts to an address a local health probe
// can reach.
package netutil
