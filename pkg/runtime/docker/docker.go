package docker

import (
	"context"
	ierror "errors"
	"fmt"
	"io"

	"github.com/simongiter/ml-hub/pkg/errors"
	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/ports"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// Config carries the process-wide runtime connection settings. TLS material
// is picked up from the standard DOCKER_CERT_PATH/DOCKER_TLS_VERIFY
// environment, the same way the docker CLI resolves it.
type Config struct {
	// Host overrides the daemon endpoint, empty uses the environment.
	Host string
}

// Runtime implements ports.ContainerRuntime on top of the Docker Engine API.
type Runtime struct {
	docker *client.Client
}

func New(cfg *Config) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	dockerClient, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	dockerClient.NegotiateAPIVersion(context.Background())

	return &Runtime{docker: dockerClient}, nil
}

// ListNetworks returns all networks the daemon knows about. Networks without
// IPAM configuration are returned with an empty Subnet so the allocator can
// skip them.
func (r *Runtime) ListNetworks(ctx context.Context) ([]models.NetworkRecord, error) {
	summaries, err := r.docker.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, r.wrap("listing networks", err)
	}

	records := make([]models.NetworkRecord, 0, len(summaries))
	for _, summary := range summaries {
		record := models.NetworkRecord{
			ID:   summary.ID,
			Name: summary.Name,
		}

		if len(summary.IPAM.Config) > 0 {
			record.Subnet = summary.IPAM.Config[0].Subnet
			record.Gateway = summary.IPAM.Config[0].Gateway
		}

		records = append(records, record)
	}

	return records, nil
}

func (r *Runtime) CreateNetwork(ctx context.Context, input ports.CreateNetworkInput) (models.NetworkRecord, error) {
	resp, err := r.docker.NetworkCreate(ctx, input.Name, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Driver: "default",
			Config: []network.IPAMConfig{
				{
					Subnet:  input.Subnet,
					Gateway: input.Gateway,
				},
			},
		},
	})
	if err != nil {
		// The daemon rejects both duplicate names and overlapping pools at
		// creation time. That rejection is the only guard against two racing
		// allocations, so it must stay distinguishable for the caller.
		if errdefs.IsConflict(err) || errdefs.IsForbidden(err) {
			return models.NetworkRecord{}, &errors.DuplicateNetworkError{
				Name:   input.Name,
				Subnet: input.Subnet,
				Cause:  err,
			}
		}

		return models.NetworkRecord{}, r.wrap(fmt.Sprintf("creating network %s", input.Name), err)
	}

	return models.NetworkRecord{
		ID:      resp.ID,
		Name:    input.Name,
		Subnet:  input.Subnet,
		Gateway: input.Gateway,
	}, nil
}

func (r *Runtime) ConnectEndpoint(ctx context.Context, networkName, containerName string) error {
	err := r.docker.NetworkConnect(ctx, networkName, containerName, nil)
	if err == nil {
		return nil
	}

	// A 403 here means the container is already attached, e.g.
	// "endpoint with name mlhub already exists in network mlhub-admin".
	if errdefs.IsForbidden(err) || errdefs.IsConflict(err) {
		return &errors.EndpointConflictError{
			Network:  networkName,
			Endpoint: containerName,
			Cause:    err,
		}
	}

	return r.wrap(fmt.Sprintf("connecting %s to network %s", containerName, networkName), err)
}

func (r *Runtime) StartContainer(ctx context.Context, input ports.StartContainerInput) (string, error) {
	readCloser, err := r.docker.ImagePull(ctx, input.Image, image.PullOptions{})
	if err != nil {
		return "", r.wrap(fmt.Sprintf("pulling image %s", input.Image), err)
	}

	// The pull only completes once its progress stream is consumed.
	_, _ = io.Copy(io.Discard, readCloser)
	readCloser.Close()

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs: input.NanoCPUs,
			Memory:   input.MemoryBytes,
		},
		Runtime: input.Runtime,
	}

	for source, target := range input.Volumes {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: source,
			Target: target,
		})
	}

	var networking *network.NetworkingConfig
	if input.NetworkName != "" {
		networking = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				input.NetworkName: {},
			},
		}
	}

	containerResp, err := r.docker.ContainerCreate(
		ctx,
		&container.Config{
			Image: input.Image,
			Env:   input.Env,
		},
		hostConfig,
		networking,
		nil,
		input.Name,
	)
	if err != nil {
		return "", r.wrap(fmt.Sprintf("creating container %s", input.Name), err)
	}

	if err = r.docker.ContainerStart(ctx, containerResp.ID, container.StartOptions{}); err != nil {
		return "", r.wrap(fmt.Sprintf("starting container %s", input.Name), err)
	}

	return containerResp.ID, nil
}

func (r *Runtime) wrap(op string, err error) error {
	if client.IsErrConnectionFailed(err) || ierror.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, errors.ErrRuntimeUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
