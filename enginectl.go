package enginectl

import (
	"context"

	"github.com/giantswarm/enginectl/internal/core"
	"github.com/giantswarm/enginectl/internal/podinfo"
)

// Compile-time interface satisfaction check.
var _ Supervisor = (*supervisor)(nil)

// supervisor wraps core.Supervisor to implement the Supervisor interface.
// The core value is a named field rather than embedded so that type
// assertions cannot reach methods outside the interface.
type supervisor struct {
	sup *core.Supervisor
}

// New returns a Supervisor for the given settings. It validates the
// configuration but starts nothing. Launch requirements such as a model name
// are checked by Launch and Run.
//
// When POD_IP is unset and no client is given with WithKubernetesClient, New
// prepares an in-cluster Kubernetes client if the program runs in a pod.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Supervisor interface by design for testability (mockable).
func New(settings Settings, opts ...Option) (Supervisor, error) {
	cfg, err := newSupervisorConfig(settings)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := core.Logger()
	if cfg.kubeClient == nil && settings.PodIP == "" {
		client, err := podinfo.InClusterClient()
		if err != nil {
			log.Debug("in-cluster client unavailable; pod IP falls back to interface addresses", "error", err)
		}
		cfg.kubeClient = client
	}
	cfg.Pod = podinfo.Resolver{
		Name:      settings.PodName,
		IP:        settings.PodIP,
		Namespace: settings.PodNamespace,
		Client:    cfg.kubeClient,
		Logger:    log,
	}

	sup, err := core.NewSupervisor(cfg.SupervisorConfig)
	if err != nil {
		return nil, err
	}
	return &supervisor{sup: sup}, nil
}

// Launch wraps core.Supervisor.Launch.
func (s *supervisor) Launch(ctx context.Context, opts LaunchOptions) (Launch, error) {
	return s.sup.Launch(ctx, opts)
}

// Stop wraps core.Supervisor.Stop.
func (s *supervisor) Stop(ctx context.Context, opts StopOptions) (StopReport, error) {
	return s.sup.Stop(ctx, opts)
}

// Status wraps core.Supervisor.Status.
func (s *supervisor) Status(ctx context.Context) (Status, error) {
	return s.sup.Status(ctx)
}

// Run wraps core.Supervisor.Run.
func (s *supervisor) Run(ctx context.Context, opts RunOptions) error {
	return s.sup.Run(ctx, opts)
}
