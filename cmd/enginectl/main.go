// Command enginectl launches and stops an inference engine in the
// background, or supervises it in the foreground.
package main

import (
	"os"

	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

func main() {
	// set up signals so we handle the shutdown signal gracefully
	ctx := signals.SetupSignalHandler()

	code := execute(ctx, os.Args[1:], newApp(os.Stdout, os.Stderr))
	klog.Flush()
	os.Exit(code)
}
