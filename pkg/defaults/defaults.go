package defaults

const (
	// ReservedFirstOctet is the first octet of the address range workspace
	// networks are carved from. Docker's own default pool ends at 172.32, so
	// everything from 172.33 upwards is ours.
	ReservedFirstOctet = 172

	// ReservedSecondOctet is the lowest second octet inside the reserved range.
	ReservedSecondOctet = 33

	// NetworkBlockSize is the number of addresses in one workspace network,
	// one /24 per workspace.
	NetworkBlockSize = 256

	// WorkspaceImage is the image used when a launch request does not name one.
	WorkspaceImage = "mltooling/ml-workspace:latest"

	// WorkspaceMountPath is where a workspace's named volume is mounted.
	WorkspaceMountPath = "/workspace"

	// HubContainerName is the fallback identity of the hub container when
	// HOSTNAME is not set.
	HubContainerName = "mlhub"

	// MaxAllocationAttempts bounds how often a launch re-runs subnet
	// allocation after losing a creation race.
	MaxAllocationAttempts = 3

	// EnvGPUVisibility exposes the requested GPU selector to the workspace.
	EnvGPUVisibility = "NVIDIA_VISIBLE_DEVICES"

	// EnvThreadHint tells numeric libraries inside the workspace how many
	// threads to use.
	EnvThreadHint = "OMP_NUM_THREADS"

	// EnvJumphostTarget points SSH tooling at the workspace's own container.
	EnvJumphostTarget = "SSH_JUMPHOST_TARGET"

	// GPURuntime is the container runtime requested when GPUs are selected.
	GPURuntime = "nvidia"
)
