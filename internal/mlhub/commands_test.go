package mlhub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/network"

	g "github.com/onsi/gomega"
)

const profileContents = `image = "profile/workspace:1"
cpu_limit = 2
mem_limit = "4g"
gpus = "0"
mount_volume = true

[env]
FOO = "profile"
BAR = "keep"
`

func writeProfile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workspace.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing profile: %v", err)
	}

	return path
}

func TestBuildOptions_profileDefaults(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Profile = writeProfile(t, profileContents)

	options, err := buildOptions(cfg)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(options.Image).To(g.Equal("profile/workspace:1"))
	g.Expect(options.CPULimit).To(g.Equal(2))
	g.Expect(options.MemLimit).To(g.Equal("4g"))
	g.Expect(options.GPUs).To(g.Equal("0"))
	g.Expect(options.MountVolume).To(g.BeTrue())
	g.Expect(options.Env).To(g.Equal(map[string]string{
		"FOO": "profile",
		"BAR": "keep",
	}))
}

func TestBuildOptions_flagsWinOverProfile(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Profile = writeProfile(t, profileContents)
	cfg.Spawn.Image = "flag/workspace:2"
	cfg.Spawn.CPULimit = 8
	cfg.Spawn.MemLimit = "8g"
	cfg.Spawn.GPUs = "all"

	options, err := buildOptions(cfg)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(options.Image).To(g.Equal("flag/workspace:2"))
	g.Expect(options.CPULimit).To(g.Equal(8))
	g.Expect(options.MemLimit).To(g.Equal("8g"))
	g.Expect(options.GPUs).To(g.Equal("all"))
	// The profile's checkbox stays effective, flags can only switch it on.
	g.Expect(options.MountVolume).To(g.BeTrue())
}

func TestBuildOptions_envFlagWinsOnCollision(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Profile = writeProfile(t, profileContents)
	cfg.Spawn.Env = []string{"FOO=flag", "EXTRA=1"}

	options, err := buildOptions(cfg)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(options.Env).To(g.Equal(map[string]string{
		"FOO":   "flag",
		"BAR":   "keep",
		"EXTRA": "1",
	}))
}

func TestBuildOptions_flagsOnly(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Image = "flag/workspace:2"
	cfg.Spawn.MountVolume = true

	options, err := buildOptions(cfg)

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(options.Image).To(g.Equal("flag/workspace:2"))
	g.Expect(options.MountVolume).To(g.BeTrue())
	g.Expect(options.Env).To(g.BeEmpty())
}

func TestBuildOptions_missingProfile(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Profile = filepath.Join(t.TempDir(), "does-not-exist.toml")

	_, err := buildOptions(cfg)

	g.Expect(err).To(g.HaveOccurred())
}

func TestBuildOptions_unparsableProfile(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &Config{}
	cfg.Spawn.Profile = writeProfile(t, "image = [not toml")

	_, err := buildOptions(cfg)

	g.Expect(err).To(g.HaveOccurred())
}

func TestReservedNetworks_filtersForeignAndMalformed(t *testing.T) {
	g.RegisterTestingT(t)

	records := []models.NetworkRecord{
		{Name: "ws-a", Subnet: "172.33.0.0/24", Gateway: "172.33.0.1"},
		{Name: "bridge", Subnet: "172.17.0.0/16", Gateway: "172.17.0.1"},
		{Name: "ws-b", Subnet: "172.34.5.0/24", Gateway: "172.34.5.1"},
		{Name: "lan", Subnet: "10.0.0.0/24", Gateway: "10.0.0.1"},
		{Name: "no-ipam"},
		{Name: "garbage", Subnet: "not-a-subnet"},
	}

	inRange := reservedNetworks(records, network.DefaultReservedRange())

	g.Expect(inRange).To(g.Equal([]models.NetworkRecord{
		{Name: "ws-a", Subnet: "172.33.0.0/24", Gateway: "172.33.0.1"},
		{Name: "ws-b", Subnet: "172.34.5.0/24", Gateway: "172.34.5.1"},
	}))
}
