package mlhub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simongiter/ml-hub/pkg/log"
	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/network"
	dockerruntime "github.com/simongiter/ml-hub/pkg/runtime/docker"
	"github.com/simongiter/ml-hub/pkg/spawner"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// WorkspaceProfile mirrors the spawn form fields so recurring setups can be
// kept in a TOML file and shared between users.
type WorkspaceProfile struct {
	Image       string            `toml:"image"`
	CPULimit    int               `toml:"cpu_limit"`
	MemLimit    string            `toml:"mem_limit"`
	Env         map[string]string `toml:"env"`
	MountVolume bool              `toml:"mount_volume"`
	GPUs        string            `toml:"gpus"`
}

func SpawnCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Start a workspace container on its own isolated network",
		PreRunE: func(c *cobra.Command, _ []string) error {
			BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.WithLogger(cmd.Context(),
				log.GetLogger(cmd.Context()).WithField("launch_id", uuid.NewString()))

			runtime, err := dockerruntime.New(&dockerruntime.Config{Host: cfg.DockerHost})
			if err != nil {
				return err
			}

			options, err := buildOptions(cfg)
			if err != nil {
				return err
			}

			allocator := network.NewAllocator(runtime, network.DefaultReservedRange())
			workspaces := spawner.New(&spawner.Config{
				DefaultImage: cfg.DefaultImage,
				HubContainer: cfg.HubContainer,
			}, runtime, allocator)

			workspace := models.WorkspaceID{
				User:   cfg.Spawn.User,
				Server: cfg.Spawn.Server,
			}

			launch, err := workspaces.Launch(ctx, workspace, options)
			if err != nil {
				return fmt.Errorf("launching workspace %s (reached %s): %w",
					workspace.ObjectName(), launch.State, err)
			}

			fmt.Printf("Workspace %s running on network %s (%s)\n",
				workspace.ObjectName(), launch.Network.Name, launch.Network.Subnet)

			return nil
		},
	}

	AddSpawnFlags(cmd, cfg)

	return cmd
}

func NetworksCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List workspace networks inside the reserved address range",
		PreRunE: func(c *cobra.Command, _ []string) error {
			BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := dockerruntime.New(&dockerruntime.Config{Host: cfg.DockerHost})
			if err != nil {
				return err
			}

			records, err := runtime.ListNetworks(cmd.Context())
			if err != nil {
				return err
			}

			for _, record := range reservedNetworks(records, network.DefaultReservedRange()) {
				fmt.Printf("%s\t%s\t%s\n", record.Name, record.Subnet, record.Gateway)
			}

			return nil
		},
	}

	return cmd
}

// reservedNetworks keeps only the records whose subnet lies inside the
// reserved workspace range. Records with missing or unparsable IPAM data are
// dropped with the out-of-range ones.
func reservedNetworks(records []models.NetworkRecord, reserved network.ReservedRange) []models.NetworkRecord {
	inRange := make([]models.NetworkRecord, 0, len(records))

	for _, record := range records {
		prefix, err := network.ParseSubnet(record.Subnet)
		if err != nil || !reserved.Contains(prefix) {
			continue
		}

		inRange = append(inRange, record)
	}

	return inRange
}

// buildOptions assembles the workspace options from the profile file (if
// any) and the spawn flags, flags taking precedence. The assembled values go
// through the same form parser the hosting platform uses.
func buildOptions(cfg *Config) (models.WorkspaceOptions, error) {
	profile := WorkspaceProfile{}

	if cfg.Spawn.Profile != "" {
		profilePath, err := filepath.Abs(cfg.Spawn.Profile)
		if err != nil {
			return models.WorkspaceOptions{}, err
		}

		contents, err := os.ReadFile(profilePath)
		if err != nil {
			return models.WorkspaceOptions{}, fmt.Errorf("reading profile %s: %w", profilePath, err)
		}

		if err := toml.Unmarshal(contents, &profile); err != nil {
			return models.WorkspaceOptions{}, fmt.Errorf("parsing profile %s: %w", profilePath, err)
		}
	}

	if cfg.Spawn.Image != "" {
		profile.Image = cfg.Spawn.Image
	}

	if cfg.Spawn.CPULimit > 0 {
		profile.CPULimit = cfg.Spawn.CPULimit
	}

	if cfg.Spawn.MemLimit != "" {
		profile.MemLimit = cfg.Spawn.MemLimit
	}

	if cfg.Spawn.GPUs != "" {
		profile.GPUs = cfg.Spawn.GPUs
	}

	if cfg.Spawn.MountVolume {
		profile.MountVolume = true
	}

	envLines := make([]string, 0, len(profile.Env)+len(cfg.Spawn.Env))
	for key, value := range profile.Env {
		envLines = append(envLines, fmt.Sprintf("%s=%s", key, value))
	}

	envLines = append(envLines, cfg.Spawn.Env...)

	form := map[string][]string{
		"image":     {profile.Image},
		"mem_limit": {profile.MemLimit},
		"gpus":      {profile.GPUs},
		"env":       {strings.Join(envLines, "\n")},
	}

	if profile.CPULimit > 0 {
		form["cpu_limit"] = []string{fmt.Sprintf("%d", profile.CPULimit)}
	}

	if profile.MountVolume {
		form["is_mount_volume"] = []string{"on"}
	}

	return spawner.ParseOptions(form)
}
