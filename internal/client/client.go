// Package client is a thin typed client for the ctxguard HTTP API, used
// by the CLI and by host applications that deploy the engine as a
// service rather than a library.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ctxguard/ctxguard/internal/types"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type GrantParams struct {
	UserID       string             `json:"user_id"`
	ResourceType string             `json:"resource_type"`
	Action       types.Action       `json:"action"`
	GrantedBy    string             `json:"granted_by"`
	Options      types.GrantOptions `json:"options"`
}

func (c *Client) Grant(ctx context.Context, p GrantParams) (*types.Permission, error) {
	var out types.Permission
	if err := c.do(ctx, http.MethodPost, "/permissions", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Check(ctx context.Context, req types.PermissionRequest) (*types.CheckResult, error) {
	var out types.CheckResult
	if err := c.do(ctx, http.MethodPost, "/permissions/check", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Revoke(ctx context.Context, id, revokedBy string) (bool, error) {
	body := map[string]string{"revoked_by": revokedBy}
	err := c.do(ctx, http.MethodDelete, "/permissions/"+id, body, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) RevokeAll(ctx context.Context, userID, resourceType, revokedBy string) (int, error) {
	body := map[string]string{
		"user_id":       userID,
		"resource_type": resourceType,
		"revoked_by":    revokedBy,
	}
	var out map[string]int
	if err := c.do(ctx, http.MethodPost, "/permissions/revoke-all", body, &out); err != nil {
		return 0, err
	}
	return out["revoked"], nil
}

func (c *Client) UserPermissions(ctx context.Context, userID string) ([]types.Permission, error) {
	var out []types.Permission
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/permissions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RequestConsent(ctx context.Context, req types.ConsentRequest) (*types.ConsentDecision, error) {
	var out types.ConsentDecision
	if err := c.do(ctx, http.MethodPost, "/consents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) HasValidConsent(ctx context.Context, userID, purpose string, dataTypes []string) (bool, error) {
	body := map[string]any{
		"user_id":    userID,
		"purpose":    purpose,
		"data_types": dataTypes,
	}
	var out map[string]bool
	if err := c.do(ctx, http.MethodPost, "/consents/check", body, &out); err != nil {
		return false, err
	}
	return out["valid"], nil
}

func (c *Client) RevokeConsent(ctx context.Context, id, userID string) (bool, error) {
	body := map[string]string{"user_id": userID}
	err := c.do(ctx, http.MethodDelete, "/consents/"+id, body, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) UserConsents(ctx context.Context, userID string) ([]types.Consent, error) {
	var out []types.Consent
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/consents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConsentHistory(ctx context.Context, userID string) ([]types.ConsentRecord, error) {
	var out []types.ConsentRecord
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/consents/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*types.Stats, error) {
	var out types.Stats
	if err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cleanup(ctx context.Context) (*types.CleanupResult, error) {
	var out types.CleanupResult
	if err := c.do(ctx, http.MethodPost, "/admin/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIError carries the server's status code and error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
