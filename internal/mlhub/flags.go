package mlhub

import (
	"fmt"

	"github.com/simongiter/ml-hub/pkg/defaults"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	dockerHostFlag   = "docker-host"
	hubContainerFlag = "hub-container"
	defaultImageFlag = "default-image"
	userFlag         = "user"
	serverFlag       = "server"
	imageFlag        = "image"
	cpusFlag         = "cpus"
	memoryFlag       = "memory"
	envFlag          = "env"
	mountVolumeFlag  = "mount-volume"
	gpusFlag         = "gpus"
	profileFlag      = "profile"
)

func AddCommonFlags(cmd *cobra.Command, cfg *Config) {
	cmd.PersistentFlags().StringVar(&cfg.DockerHost,
		dockerHostFlag,
		"",
		"Docker daemon endpoint. Empty uses the DOCKER_HOST environment or the default socket.")

	cmd.PersistentFlags().StringVar(&cfg.HubContainer,
		hubContainerFlag,
		"",
		"Name of the hub container to attach to every workspace network. Empty resolves HOSTNAME.")

	cmd.PersistentFlags().StringVar(&cfg.DefaultImage,
		defaultImageFlag,
		defaults.WorkspaceImage,
		"Image used for workspaces that do not request one.")
}

func AddSpawnFlags(cmd *cobra.Command, cfg *Config) {
	cmd.Flags().StringVar(&cfg.Spawn.User, userFlag, "", "User the workspace belongs to")
	cmd.Flags().StringVar(&cfg.Spawn.Server, serverFlag, "", "Named-server suffix, empty for the default server")
	cmd.Flags().StringVar(&cfg.Spawn.Image, imageFlag, "", "Image override for this workspace")
	cmd.Flags().IntVar(&cfg.Spawn.CPULimit, cpusFlag, 0, "CPU core limit, clamped to the host core count")
	cmd.Flags().StringVar(&cfg.Spawn.MemLimit, memoryFlag, "", "Memory limit, e.g. 100mb or 8g")
	cmd.Flags().StringSliceVar(&cfg.Spawn.Env, envFlag, []string{}, "Extra environment entries in KEY=VALUE form")
	cmd.Flags().BoolVar(&cfg.Spawn.MountVolume, mountVolumeFlag, false, "Mount a named volume to the workspace directory")
	cmd.Flags().StringVar(&cfg.Spawn.GPUs, gpusFlag, "", "Comma-separated GPU indices, or 'all'")
	cmd.Flags().StringVar(&cfg.Spawn.Profile, profileFlag, "", "Path to a workspace profile (TOML); explicit flags win")
}

func BindCommandToViper(cmd *cobra.Command) {
	bindFlagsToViper(cmd.PersistentFlags())
	bindFlagsToViper(cmd.Flags())
}

func bindFlagsToViper(fs *pflag.FlagSet) {
	fs.VisitAll(func(flag *pflag.Flag) {
		_ = viper.BindPFlag(flag.Name, flag)
		_ = viper.BindEnv(flag.Name)

		if !flag.Changed && viper.IsSet(flag.Name) {
			val := viper.Get(flag.Name)
			_ = fs.Set(flag.Name, fmt.Sprintf("%v", val))
		}
	})
}
