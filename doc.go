// Package enginectl launches and stops an external inference engine, by
// default a vLLM OpenAI-compatible server, as a background process.
//
// Configuration comes from environment variables (MODEL_NAME, PORT,
// TENSOR_PARALLEL_SIZE, ...), optionally layered over a YAML file, and is
// loaded once into an immutable Settings value.
//
// # Basic Usage
//
//	import "github.com/giantswarm/enginectl"
//
//	ctx := context.Background()
//
//	settings, err := enginectl.LoadSettings("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sup, err := enginectl.New(settings)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	launch, err := sup.Launch(ctx, enginectl.LaunchOptions{Wait: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("engine %d logs to %s", launch.PID, launch.LogPath)
//
//	report, err := sup.Stop(ctx, enginectl.StopOptions{})
//	fmt.Println(report.Outcome()) // "stopped" or "nothing to stop"
//
// # Handles and Scans
//
// Every launch is recorded with the engine's PID, process group and start
// time in a registry under <BASE_DIR>/.enginectl. Stop prefers those
// handles, which survive restarts of this program and are immune to PID
// reuse. Engines started by other means are found by scanning process
// command lines for PROCESS_NAME, either when nothing is recorded or when
// StopOptions.Scan is set.
//
// # Foreground Mode
//
// Run keeps the engine attached as a child process and supervises it until
// the context is canceled, serving /live, /ready and /metrics when a probes
// address is given. This suits containers where the engine should be the
// main workload.
package enginectl
