// Package fileutil holds the small filesystem helpers shared by the engine
// launcher and the state store: directory creation, append-mode opening of
// engine log files, and reading the tail of a log for error reports.
package fileutil
