package ports

import (
	"context"

	"github.com/simongiter/ml-hub/pkg/models"
)

// ContainerRuntime is the port definition for the container runtime the
// spawner drives. Implementations classify runtime failures into the error
// types of pkg/errors so callers can branch without knowing the wire format.
type ContainerRuntime interface {
	// ListNetworks returns every network the runtime knows about, including
	// ones with incomplete IPAM data (empty Subnet).
	ListNetworks(ctx context.Context) ([]models.NetworkRecord, error)
	// CreateNetwork creates an isolated network bound to the given subnet.
	// A name or subnet collision yields *errors.DuplicateNetworkError.
	CreateNetwork(ctx context.Context, input CreateNetworkInput) (models.NetworkRecord, error)
	// ConnectEndpoint attaches a container to a network. When the container
	// is already a member the error is *errors.EndpointConflictError.
	ConnectEndpoint(ctx context.Context, networkName, containerName string) error
	// StartContainer pulls the image if needed, creates the container
	// attached to the given network and starts it. Returns the container ID.
	StartContainer(ctx context.Context, input StartContainerInput) (string, error)
}

type CreateNetworkInput struct {
	// Name of the network to create.
	Name string
	// Subnet in CIDR notation, e.g. 172.33.2.0/24.
	Subnet string
	// Gateway address inside the subnet.
	Gateway string
}

type StartContainerInput struct {
	// Name of the container to create.
	Name string
	// Image reference to run.
	Image string
	// Env entries in KEY=VALUE form.
	Env []string
	// NanoCPUs is the CPU quota in units of 1e-9 cores, 0 for no limit.
	NanoCPUs int64
	// MemoryBytes is the memory limit in bytes, 0 for no limit.
	MemoryBytes int64
	// Runtime selects a non-default OCI runtime, e.g. "nvidia".
	Runtime string
	// Volumes maps named volumes to container mount paths.
	Volumes map[string]string
	// NetworkName is the isolated network the container joins.
	NetworkName string
}
