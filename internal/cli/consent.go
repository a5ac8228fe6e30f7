package cli

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func cmdConsent() *cobra.Command {
	c := &cobra.Command{
		Use:   "consent",
		Short: "Consent operations",
	}
	c.AddCommand(cmdConsentRequest(), cmdConsentRevoke(), cmdConsentList(), cmdConsentHistory())
	return c
}

func cmdConsentRequest() *cobra.Command {
	var dataTypes []string
	var requester string

	c := &cobra.Command{
		Use:   "request <user> <purpose>",
		Short: "Request consent for a purpose",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{
				"id":         uuid.NewString(),
				"purpose":    args[1],
				"data_types": dataTypes,
				"requester":  requester,
				"context": map[string]any{
					"user_id":   args[0],
					"timestamp": time.Now().UTC(),
				},
			})
			resp, _, err := httpDoJSON("POST", apiBase()+"/consents", body, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	c.Flags().StringSliceVar(&dataTypes, "data-types", nil, "data types the consent covers")
	c.Flags().StringVar(&requester, "requester", "", "requesting application id")
	return c
}

func cmdConsentRevoke() *cobra.Command {
	var userID string

	c := &cobra.Command{
		Use:   "revoke <consent-id>",
		Short: "Revoke a consent (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"user_id": userID})
			resp, _, err := httpDoJSON("DELETE", apiBase()+"/consents/"+args[0], body, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	c.Flags().StringVar(&userID, "user", "", "owning user id")
	return c
}

func cmdConsentList() *cobra.Command {
	return &cobra.Command{
		Use:   "list <user>",
		Short: "List active consents for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := httpDoJSON("GET", apiBase()+"/users/"+args[0]+"/consents", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func cmdConsentHistory() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user>",
		Short: "Show the full consent history for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := httpDoJSON("GET", apiBase()+"/users/"+args[0]+"/consents/history", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}
