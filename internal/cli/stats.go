package cli

import (
	"github.com/spf13/cobra"
)

func cmdStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show live store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := httpDoJSON("GET", apiBase()+"/admin/stats", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cmdCleanup() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep expired permissions and consents",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := httpDoJSON("POST", apiBase()+"/admin/cleanup", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

// apiBase resolves the engine URL: flag first, then config file.
func apiBase() string {
	if baseURL != "" {
		return baseURL
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return "http://localhost:8086"
	}
	return cfg.BaseURL
}
