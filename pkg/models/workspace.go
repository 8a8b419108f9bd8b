package models

import "fmt"

// LaunchState tracks how far a single launch attempt got. A failed attempt
// stays in the state it reached; retries are a new Launch call.
type LaunchState string

const (
	PendingState          LaunchState = "pending"
	OptionsResolvedState  LaunchState = "options_resolved"
	NetworkResolvedState  LaunchState = "network_resolved"
	HubAttachedState      LaunchState = "hub_attached"
	ContainerStartedState LaunchState = "container_started"
	FailedState           LaunchState = "failed"
)

// WorkspaceID identifies a workspace by its owning user and the optional
// named-server suffix.
type WorkspaceID struct {
	User   string `json:"user"`
	Server string `json:"server"`
}

// ObjectName is the canonical name for everything the workspace owns: its
// container, its isolated network and the network's name in the runtime.
func (id WorkspaceID) ObjectName() string {
	if id.Server == "" {
		return fmt.Sprintf("mlhub-%s", id.User)
	}

	return fmt.Sprintf("mlhub-%s-%s", id.User, id.Server)
}

// VolumeName is the named volume bound to the workspace directory when the
// user asks for a persistent mount.
func (id WorkspaceID) VolumeName() string {
	if id.Server == "" {
		return fmt.Sprintf("mlhub-user-%s", id.User)
	}

	return fmt.Sprintf("mlhub-user-%s-%s", id.User, id.Server)
}

// WorkspaceOptions are the user-supplied launch options, immutable for the
// duration of one start attempt.
type WorkspaceOptions struct {
	// Image overrides the default workspace image when set.
	Image string `json:"image"`
	// CPULimit is the requested CPU core count, clamped to the host.
	CPULimit int `json:"cpu_limit"`
	// MemLimit is a memory limit string such as "100mb" or "8g".
	MemLimit string `json:"mem_limit"`
	// Env is overlaid onto the platform's base environment.
	Env map[string]string `json:"env"`
	// MountVolume binds a per-user named volume to the workspace directory.
	MountVolume bool `json:"mount_volume"`
	// GPUs is a comma-separated list of GPU indices, or "all".
	GPUs string `json:"gpus"`
}

// NetworkRecord is the runtime's view of an isolated workspace network. The
// allocator reads and creates records, it never mutates or deletes one.
type NetworkRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subnet  string `json:"subnet"`
	Gateway string `json:"gateway"`
}

// LaunchContext combines the resolved options with the allocated network for
// the duration of one launch call.
type LaunchContext struct {
	Workspace WorkspaceID
	Options   WorkspaceOptions
	State     LaunchState

	Image       string
	NanoCPUs    int64
	MemoryBytes int64
	Runtime     string
	Env         []string
	Volumes     map[string]string
	Network     NetworkRecord
}
