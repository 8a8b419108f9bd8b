package spawner

import (
	"strconv"
	"strings"

	"github.com/simongiter/ml-hub/pkg/errors"
	"github.com/simongiter/ml-hub/pkg/models"
)

// ParseOptions translates the launch form fields into WorkspaceOptions. The
// field names match the spawn form: image, cpu_limit, mem_limit, env (one
// KEY=VALUE per line), is_mount_volume ("on" when checked) and gpus.
func ParseOptions(form map[string][]string) (models.WorkspaceOptions, error) {
	options := models.WorkspaceOptions{
		Env: map[string]string{},
	}

	options.Image = firstValue(form, "image")
	options.MemLimit = firstValue(form, "mem_limit")
	options.GPUs = firstValue(form, "gpus")
	options.MountVolume = firstValue(form, "is_mount_volume") == "on"

	if raw := firstValue(form, "cpu_limit"); raw != "" {
		cores, err := strconv.Atoi(raw)
		if err != nil || cores <= 0 {
			return models.WorkspaceOptions{}, &errors.InvalidOptionError{
				Option: "cpu_limit",
				Value:  raw,
				Reason: "must be a positive integer",
			}
		}

		options.CPULimit = cores
	}

	for _, line := range strings.Split(firstValue(form, "env"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) == "" {
			return models.WorkspaceOptions{}, &errors.InvalidOptionError{
				Option: "env",
				Value:  line,
				Reason: "expected KEY=VALUE",
			}
		}

		options.Env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return options, nil
}

func firstValue(form map[string][]string, key string) string {
	values := form[key]
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
