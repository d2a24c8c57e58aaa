// Package podinfo works out the pod name and pod IP that identify this
// engine replica in its log file name. Explicit values win; otherwise the
// name falls back to the hostname and the IP to the pod's status as reported
// by the Kubernetes API, then to the first non-loopback interface address.
package podinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/giantswarm/enginectl/internal/sentinel"
)

const (
	// ErrNoPodIP is returned when no source yields a usable IP address.
	ErrNoPodIP = sentinel.Error("no pod IP available")

	// ErrInvalidIdentity is returned when a pod name or IP is malformed.
	ErrInvalidIdentity = sentinel.Error("invalid pod identity")
)

// serviceAccountNamespaceFile holds the pod namespace inside a cluster.
const serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// Identity names one engine replica.
type Identity struct {
	Name      string
	IP        string
	Namespace string
}

// Validate checks that Name is a DNS-1123 subdomain and IP parses. Neither
// may then contain an underscore, which keeps log file names unambiguous.
func (i Identity) Validate() error {
	var errs []error
	for _, msg := range validation.IsDNS1123Subdomain(i.Name) {
		errs = append(errs, fmt.Errorf("pod name %q: %s", i.Name, msg))
	}
	if net.ParseIP(i.IP) == nil {
		errs = append(errs, fmt.Errorf("pod IP %q is not an IP address", i.IP))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidIdentity, errors.Join(errs...))
	}
	return nil
}

// Resolver resolves an Identity. Zero-value function fields fall back to the
// os and net package functions.
type Resolver struct {
	// Name, IP and Namespace are explicit values that take precedence.
	Name      string
	IP        string
	Namespace string
	// Client, when set, is used to read the pod's IP from its status.
	Client         kubernetes.Interface
	Hostname       func() (string, error)
	InterfaceAddrs func() ([]net.Addr, error)
	Logger         *slog.Logger
}

// Resolve fills in any missing part of the identity and validates it.
func (r Resolver) Resolve(ctx context.Context) (Identity, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	id := Identity{Name: r.Name, IP: r.IP, Namespace: r.Namespace}

	if id.Name == "" {
		hostname := r.Hostname
		if hostname == nil {
			hostname = os.Hostname
		}
		name, err := hostname()
		if err != nil {
			return Identity{}, fmt.Errorf("resolve pod name from hostname: %w", err)
		}
		id.Name = strings.ToLower(name)
	}
	if id.Namespace == "" {
		id.Namespace = ServiceAccountNamespace()
	}

	if id.IP == "" && r.Client != nil && id.Namespace != "" {
		ip, err := r.podIPFromAPI(ctx, id)
		if err != nil {
			log.Debug("pod IP lookup through API failed", "pod", id.Name, "namespace", id.Namespace, "error", err)
		}
		id.IP = ip
	}
	if id.IP == "" {
		ip, err := r.firstInterfaceIP()
		if err != nil {
			return Identity{}, err
		}
		id.IP = ip
	}

	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (r Resolver) podIPFromAPI(ctx context.Context, id Identity) (string, error) {
	pod, err := r.Client.CoreV1().Pods(id.Namespace).Get(ctx, id.Name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get pod %s/%s: %w", id.Namespace, id.Name, err)
	}
	return pod.Status.PodIP, nil
}

// firstInterfaceIP returns the first global unicast IPv4 address, or the
// first IPv6 one when there is no IPv4 address.
func (r Resolver) firstInterfaceIP() (string, error) {
	addrs := r.InterfaceAddrs
	if addrs == nil {
		addrs = net.InterfaceAddrs
	}
	list, err := addrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}

	var v6 string
	for _, a := range list {
		ipNet, ok := a.(*net.IPNet)
		if !ok || !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		if ipNet.IP.To4() != nil {
			return ipNet.IP.String(), nil
		}
		if v6 == "" {
			v6 = ipNet.IP.String()
		}
	}
	if v6 != "" {
		return v6, nil
	}
	return "", ErrNoPodIP
}

// ServiceAccountNamespace returns the namespace mounted into the pod's
// service account volume, or "" outside a cluster.
func ServiceAccountNamespace() string {
	data, err := os.ReadFile(serviceAccountNamespaceFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// InClusterClient returns a clientset for the cluster the program runs in,
// or nil without error when it is not running in a cluster.
func InClusterClient() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if errors.Is(err, rest.ErrNotInCluster) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load in-cluster config: %w", err)
	}
	cfg.UserAgent = "enginectl"
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return client, nil
}
