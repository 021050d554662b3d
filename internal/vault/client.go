// Package vault resolves credential references at target registration time.
// Secrets read here go straight into the in-memory credential cache and are
// never written back to disk.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

// ErrSecretNotFound indicates the referenced secret path holds no data.
var ErrSecretNotFound = errors.New("vault secret not found")

type Option func(*config)

type config struct {
	address  string
	token    string
	roleID   string
	roleName string
}

// Client wraps the Vault API for KV v2 reads.
type Client struct {
	api *vault.Client
}

func WithAddress(address string) Option {
	return func(c *config) {
		if address != "" {
			c.address = address
		}
	}
}

func WithToken(token string) Option {
	return func(c *config) {
		if token != "" {
			c.token = token
		}
	}
}

func WithAppRole(roleID, roleName string) Option {
	return func(c *config) {
		c.roleID = roleID
		c.roleName = roleName
	}
}

// NewClient creates and authenticates a Vault client. AppRole login is used
// when a role is configured, otherwise the static token from the options or
// environment.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}

	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	if cfg.token != "" {
		api.SetToken(cfg.token)
	}
	if cfg.roleID != "" && cfg.roleName != "" {
		if err := loginAppRole(ctx, api, cfg.roleID, cfg.roleName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
		}
	}

	return &Client{api: api}, nil
}

// loginAppRole authenticates via AppRole in two steps: generate a secret-id
// for the role, then log in with role_id + secret_id. The generate call needs
// a token with permission on the role's secret-id endpoint.
func loginAppRole(ctx context.Context, api *vault.Client, roleID, roleName string) error {
	path := fmt.Sprintf(approleSecretIDPath, roleName)
	resp, err := api.Logical().WriteWithContext(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("generate secret_id: %w", err)
	}
	if resp == nil || resp.Data == nil {
		return fmt.Errorf("no secret_id returned from %s", path)
	}
	sid, ok := resp.Data["secret_id"].(string)
	if !ok || sid == "" {
		return fmt.Errorf("no secret_id returned from %s", path)
	}

	login, err := api.Logical().WriteWithContext(ctx, approleLoginPath, map[string]any{
		"role_id":   roleID,
		"secret_id": sid,
	})
	if err != nil {
		return fmt.Errorf("approle login request: %w", err)
	}
	if login == nil || login.Auth == nil || login.Auth.ClientToken == "" {
		return fmt.Errorf("no token in login response")
	}
	api.SetToken(login.Auth.ClientToken)
	return nil
}

// ReadField reads one string field from a KV v2 secret at mount/path.
func (c *Client) ReadField(ctx context.Context, mount, path, field string) (string, error) {
	secret, err := c.api.KVv2(mount).Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read %s/%s: %w", mount, path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, mount, path)
	}
	value, ok := secret.Data[field].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s has no string field %q", ErrSecretNotFound, mount, path, field)
	}
	return value, nil
}

// DatabasePassword reads the conventional "password" field for a target's
// database credential.
func (c *Client) DatabasePassword(ctx context.Context, mount, path string) (string, error) {
	return c.ReadField(ctx, mount, path, "password")
}
