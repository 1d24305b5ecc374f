package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
)

const adminKeyHeader = "X-Admin-Key"

type adminAction string

const (
	actionGetStats adminAction = "get_stats"
	actionGetUsers adminAction = "get_users"
	actionGetLogs  adminAction = "get_logs"
	actionBanUser  adminAction = "ban_user"
)

type adminResponse struct {
	Stats   *domain.DashboardStats `json:"stats"`
	Users   []domain.AdminUser     `json:"users"`
	Logs    []domain.SystemLog     `json:"logs"`
	Success *bool                  `json:"success"`
}

func (c *Client) Stats(ctx context.Context, endpoint string) (domain.DashboardStats, error) {
	resp, err := c.adminRequest(ctx, endpoint, actionGetStats, nil)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	if resp.Stats == nil {
		return domain.DashboardStats{}, nil
	}
	return *resp.Stats, nil
}

func (c *Client) Users(ctx context.Context, endpoint string) ([]domain.AdminUser, error) {
	resp, err := c.adminRequest(ctx, endpoint, actionGetUsers, nil)
	if err != nil {
		return nil, err
	}
	if resp.Users == nil {
		return []domain.AdminUser{}, nil
	}
	return resp.Users, nil
}

func (c *Client) Logs(ctx context.Context, endpoint string) ([]domain.SystemLog, error) {
	resp, err := c.adminRequest(ctx, endpoint, actionGetLogs, nil)
	if err != nil {
		return nil, err
	}
	if resp.Logs == nil {
		return []domain.SystemLog{}, nil
	}
	return resp.Logs, nil
}

func (c *Client) SetUserStatus(ctx context.Context, endpoint, userID string, status domain.AccountStatus) error {
	resp, err := c.adminRequest(ctx, endpoint, actionBanUser, map[string]any{
		"userId": userID,
		"status": status,
	})
	if err != nil {
		return err
	}
	if resp.Success != nil && !*resp.Success {
		return domain.WrapError(domain.ErrRemoteProcessing, "set user status", fmt.Errorf("webhook rejected status change for %s", userID))
	}
	return nil
}

// adminRequest posts {action, timestamp, ...payload}. Reads are idempotent
// and go through the retrying executor.
func (c *Client) adminRequest(ctx context.Context, endpoint string, action adminAction, payload map[string]any) (adminResponse, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return adminResponse{}, domain.WrapError(domain.ErrConfiguration, string(action), errors.New("admin webhook url is not configured"))
	}

	body := make(map[string]any, len(payload)+2)
	for key, value := range payload {
		body[key] = value
	}
	body["action"] = action
	body["timestamp"] = c.now().UTC().Format(time.RFC3339Nano)

	headers := map[string]string{}
	if c.adminKey != "" {
		headers[adminKeyHeader] = c.adminKey
	}

	var raw []byte
	call := func(callCtx context.Context) error {
		out, err := c.postJSON(callCtx, endpoint, body, headers, operationAdmin)
		raw = out
		return err
	}

	var err error
	switch {
	case c.executor == nil:
		err = call(ctx)
	case action == actionBanUser:
		err = c.executor.ExecuteOnce(ctx, operationAdmin, call, resilience.ClassifyHTTP)
	default:
		err = c.executor.Execute(ctx, operationAdmin, call, resilience.ClassifyHTTP)
	}
	if err != nil {
		return adminResponse{}, domain.WrapError(domain.ErrTransport, string(action), resilience.WrapTemporary(string(action), err, nil))
	}

	var resp adminResponse
	if len(strings.TrimSpace(string(raw))) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return adminResponse{}, domain.WrapError(domain.ErrTransport, string(action), fmt.Errorf("decode response: %w", err))
	}
	return resp, nil
}
