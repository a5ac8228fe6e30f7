package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctxguard/ctxguard/internal/types"
)

func cmdGrant() *cobra.Command {
	var grantedBy string
	var resourceID string
	var ttl time.Duration
	var conditionsJSON string

	c := &cobra.Command{
		Use:   "grant <user> <resource-type> <action>",
		Short: "Grant a permission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := types.GrantOptions{ResourceID: resourceID}
			if ttl > 0 {
				exp := time.Now().UTC().Add(ttl)
				opts.ExpiresAt = &exp
			}
			if conditionsJSON != "" {
				if err := json.Unmarshal([]byte(conditionsJSON), &opts.Conditions); err != nil {
					return fmt.Errorf("parse --conditions: %w", err)
				}
			}

			body, _ := json.Marshal(map[string]any{
				"user_id":       args[0],
				"resource_type": args[1],
				"action":        args[2],
				"granted_by":    grantedBy,
				"options":       opts,
			})
			resp, _, err := httpDoJSON("POST", apiBase()+"/permissions", body, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	c.Flags().StringVar(&grantedBy, "by", "admin", "acting administrator id")
	c.Flags().StringVar(&resourceID, "resource-id", "", "specific resource instance")
	c.Flags().DurationVar(&ttl, "ttl", 0, "grant lifetime, e.g. 24h (default no expiry)")
	c.Flags().StringVar(&conditionsJSON, "conditions", "", "conditions as JSON array")
	return c
}
