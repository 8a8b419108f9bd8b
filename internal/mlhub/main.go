package mlhub

import (
	"fmt"
	"os"

	"github.com/simongiter/ml-hub/pkg/log"

	"github.com/spf13/cobra"
)

func Run() {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "mlhubd",
		Short: "ml-hub - workspace spawner",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			BindCommandToViper(cmd)

			if err := log.Configure(&cfg.Logging); err != nil {
				return fmt.Errorf("configuring logging: %w", err)
			}

			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	log.AddFlagsToCommand(cmd, &cfg.Logging)
	AddCommonFlags(cmd, cfg)

	cmd.AddCommand(SpawnCommand(cfg))
	cmd.AddCommand(NetworksCommand(cfg))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
