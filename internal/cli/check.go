package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

func cmdCheck() *cobra.Command {
	var resourceID string
	var activity string
	var session string

	c := &cobra.Command{
		Use:   "check <user> <resource-type> <action>",
		Short: "Check a permission against the current context",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{
				"user_id":       args[0],
				"resource_type": args[1],
				"resource_id":   resourceID,
				"action":        args[2],
				"context": map[string]any{
					"user_id":       args[0],
					"timestamp":     time.Now().UTC(),
					"user_activity": activity,
					"session_id":    session,
				},
			})
			resp, _, err := httpDoJSON("POST", apiBase()+"/permissions/check", body, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	c.Flags().StringVar(&resourceID, "resource-id", "", "specific resource instance")
	c.Flags().StringVar(&activity, "activity", "", "current user activity")
	c.Flags().StringVar(&session, "session", "", "session id")
	return c
}
