package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cmdInit() *cobra.Command {
	var fga string
	var auditURL string
	var dataDir string

	c := &cobra.Command{
		Use:   "init",
		Short: "Create ~/.ctxguard/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &Config{
				BaseURL:     baseURL,
				FGAEndpoint: fga,
				AuditURL:    auditURL,
				DataDir:     dataDir,
			}
			if err := saveConfig(cfgPath, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote config: %s\n", cfgPath)
			return nil
		},
	}
	c.Flags().StringVar(&fga, "fga-endpoint", "", "OpenFGA endpoint URL (optional)")
	c.Flags().StringVar(&auditURL, "audit-url", "", "external audit sink URL (optional)")
	c.Flags().StringVar(&dataDir, "data-dir", "", "secure store directory (optional, default in-memory)")
	return c
}
