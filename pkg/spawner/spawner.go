package spawner

import (
	"context"
	ierror "errors"
	"fmt"
	"os"
	goruntime "runtime"
	"sort"

	"github.com/simongiter/ml-hub/pkg/defaults"
	"github.com/simongiter/ml-hub/pkg/errors"
	"github.com/simongiter/ml-hub/pkg/log"
	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/network"
	"github.com/simongiter/ml-hub/pkg/ports"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// DefaultImage is used when the launch options name no image.
	DefaultImage string
	// HubContainer is the identity of the hub container that gets attached
	// to every workspace network. Empty resolves HOSTNAME, then "mlhub".
	HubContainer string
	// BaseEnv is the platform environment every workspace starts from.
	// User-supplied entries win on collision.
	BaseEnv map[string]string
	// MaxAllocationAttempts bounds the duplicate-network retry loop,
	// 0 uses the default.
	MaxAllocationAttempts int
	// HostCPUs overrides the detected processor count when > 0.
	HostCPUs int
}

// Spawner starts workspace containers, each on its own isolated network. It
// composes the subnet allocator with the container runtime and owns the
// launch sequencing: options first, then network, then hub attach, and only
// then the container itself.
type Spawner struct {
	cfg       *Config
	runtime   ports.ContainerRuntime
	allocator *network.Allocator
	hub       string
}

func New(cfg *Config, runtime ports.ContainerRuntime, allocator *network.Allocator) *Spawner {
	hub := cfg.HubContainer
	if hub == "" {
		hub = os.Getenv("HOSTNAME")
	}

	if hub == "" {
		hub = defaults.HubContainerName
	}

	return &Spawner{
		cfg:       cfg,
		runtime:   runtime,
		allocator: allocator,
		hub:       hub,
	}
}

// Launch starts the workspace container described by the given options. Any
// failure aborts the whole launch before the container is started; no step
// is retried here except re-running the allocation after a lost creation
// race. The returned LaunchContext reports how far the attempt got.
func (s *Spawner) Launch(ctx context.Context, workspace models.WorkspaceID, options models.WorkspaceOptions) (*models.LaunchContext, error) {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service":   "spawner",
		"workspace": workspace.ObjectName(),
	})

	launch := &models.LaunchContext{
		Workspace: workspace,
		Options:   options,
		State:     models.PendingState,
	}

	if workspace.User == "" {
		launch.State = models.FailedState
		return launch, errors.ErrUserRequired
	}

	if err := s.resolveOptions(launch); err != nil {
		launch.State = models.FailedState
		return launch, err
	}

	launch.State = models.OptionsResolvedState

	record, err := s.allocateNetwork(ctx, workspace.ObjectName())
	if err != nil {
		launch.State = models.FailedState
		return launch, fmt.Errorf("acquiring network for %s: %w", workspace.ObjectName(), err)
	}

	launch.Network = record
	launch.State = models.NetworkResolvedState

	if err := s.attachHub(ctx, logger, record.Name); err != nil {
		launch.State = models.FailedState
		return launch, err
	}

	launch.State = models.HubAttachedState

	containerID, err := s.runtime.StartContainer(ctx, ports.StartContainerInput{
		Name:        workspace.ObjectName(),
		Image:       launch.Image,
		Env:         launch.Env,
		NanoCPUs:    launch.NanoCPUs,
		MemoryBytes: launch.MemoryBytes,
		Runtime:     launch.Runtime,
		Volumes:     launch.Volumes,
		NetworkName: record.Name,
	})
	if err != nil {
		launch.State = models.FailedState
		return launch, fmt.Errorf("starting workspace %s: %w", workspace.ObjectName(), err)
	}

	launch.State = models.ContainerStartedState
	logger.Infof("started workspace container %s on network %s", containerID, record.Name)

	return launch, nil
}

// resolveOptions translates the user options into the runtime's container
// configuration. Only explicitly set options contribute; everything else
// keeps its zero value so the runtime applies its own defaults.
func (s *Spawner) resolveOptions(launch *models.LaunchContext) error {
	options := launch.Options

	launch.Image = s.cfg.DefaultImage
	if launch.Image == "" {
		launch.Image = defaults.WorkspaceImage
	}

	if options.Image != "" {
		launch.Image = options.Image
	}

	if options.CPULimit > 0 {
		// The quota cannot exceed the cores of this host. This clamp assumes
		// the workspace runs on the same machine as the hub.
		cores := options.CPULimit
		if hostCores := s.hostCPUs(); cores > hostCores {
			cores = hostCores
		}

		launch.NanoCPUs = int64(cores) * 1e9
	}

	if options.MemLimit != "" {
		memory, err := units.RAMInBytes(options.MemLimit)
		if err != nil {
			return &errors.InvalidOptionError{
				Option: "mem_limit",
				Value:  options.MemLimit,
				Reason: err.Error(),
			}
		}

		launch.MemoryBytes = memory
	}

	if options.GPUs != "" {
		launch.Runtime = defaults.GPURuntime
	}

	if options.MountVolume {
		launch.Volumes = map[string]string{
			launch.Workspace.VolumeName(): defaults.WorkspaceMountPath,
		}
	}

	launch.Env = s.buildEnv(launch)

	return nil
}

// buildEnv overlays the user environment onto the platform base environment
// and derives the workspace-specific variables from the resolved options.
func (s *Spawner) buildEnv(launch *models.LaunchContext) []string {
	env := make(map[string]string, len(s.cfg.BaseEnv)+len(launch.Options.Env)+3)

	for key, value := range s.cfg.BaseEnv {
		env[key] = value
	}

	for key, value := range launch.Options.Env {
		env[key] = value
	}

	if launch.Options.GPUs != "" {
		env[defaults.EnvGPUVisibility] = launch.Options.GPUs
	}

	if launch.NanoCPUs > 0 {
		env[defaults.EnvThreadHint] = fmt.Sprintf("%d", launch.NanoCPUs/1e9)
	}

	env[defaults.EnvJumphostTarget] = launch.Workspace.ObjectName()

	entries := make([]string, 0, len(env))
	for key, value := range env {
		entries = append(entries, fmt.Sprintf("%s=%s", key, value))
	}

	sort.Strings(entries)

	return entries
}

// allocateNetwork runs the allocator, re-running the full scan when a
// concurrent launch won the race for the computed subnet. The duplicate
// rejection by the runtime is the only concurrency control there is.
func (s *Spawner) allocateNetwork(ctx context.Context, name string) (models.NetworkRecord, error) {
	attempts := s.cfg.MaxAllocationAttempts
	if attempts <= 0 {
		attempts = defaults.MaxAllocationAttempts
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		record, err := s.allocator.AllocateOrReuse(ctx, name)
		if err == nil {
			return record, nil
		}

		var duplicate *errors.DuplicateNetworkError
		if !ierror.As(err, &duplicate) {
			return models.NetworkRecord{}, err
		}

		log.GetLogger(ctx).Warnf("lost allocation race for network %s (attempt %d/%d): %v", name, attempt, attempts, err)
		lastErr = err
	}

	return models.NetworkRecord{}, lastErr
}

// attachHub connects the hub container to the workspace network so the hub
// stays reachable from the workspace. An already-attached hub is fine.
func (s *Spawner) attachHub(ctx context.Context, logger *logrus.Entry, networkName string) error {
	err := s.runtime.ConnectEndpoint(ctx, networkName, s.hub)
	if err == nil {
		return nil
	}

	var conflict *errors.EndpointConflictError
	if ierror.As(err, &conflict) {
		logger.Debugf("hub %s already attached to network %s", s.hub, networkName)
		return nil
	}

	return fmt.Errorf("attaching hub %s to network %s: %w", s.hub, networkName, err)
}

func (s *Spawner) hostCPUs() int {
	if s.cfg.HostCPUs > 0 {
		return s.cfg.HostCPUs
	}

	return goruntime.NumCPU()
}
