package enginectl

import (
	"log/slog"

	"github.com/giantswarm/enginectl/internal/core"
)

// SetLogger replaces the package-level logger used by enginectl.
// The provided logger should already have any desired attributes; enginectl
// will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other enginectl operations.
// Supervisors capture the logger when they are created by New.
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
