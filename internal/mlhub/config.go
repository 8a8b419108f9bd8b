package mlhub

import "github.com/simongiter/ml-hub/pkg/log"

type Config struct {
	DockerHost   string
	HubContainer string
	DefaultImage string
	Logging      log.Config
	Spawn        struct {
		User        string
		Server      string
		Image       string
		CPULimit    int
		MemLimit    string
		Env         []string
		MountVolume bool
		GPUs        string
		Profile     string
	}
}
