package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func cmdRevoke() *cobra.Command {
	var revokedBy string
	var allUser string
	var allType string

	c := &cobra.Command{
		Use:   "revoke [permission-id]",
		Short: "Revoke one permission, or all of a type with --all-user/--all-type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allUser != "" && allType != "" {
				body, _ := json.Marshal(map[string]string{
					"user_id":       allUser,
					"resource_type": allType,
					"revoked_by":    revokedBy,
				})
				resp, _, err := httpDoJSON("POST", apiBase()+"/permissions/revoke-all", body, nil)
				if err != nil {
					return err
				}
				return printJSON(resp)
			}
			if len(args) != 1 {
				return cmd.Help()
			}
			body, _ := json.Marshal(map[string]string{"revoked_by": revokedBy})
			resp, _, err := httpDoJSON("DELETE", apiBase()+"/permissions/"+args[0], body, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	c.Flags().StringVar(&revokedBy, "by", "admin", "acting administrator id")
	c.Flags().StringVar(&allUser, "all-user", "", "revoke all grants of a user (with --all-type)")
	c.Flags().StringVar(&allType, "all-type", "", "resource type for --all-user")
	return c
}
