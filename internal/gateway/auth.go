package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"kvitt/internal/core"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session cookie and returns the user the
// backend authenticated.
func (c *Client) Login(ctx context.Context, username, password string) (core.User, error) {
	var resp struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodPost, pathLogin, nil, credentials{Username: username, Password: password}, &resp); err != nil {
		return core.User{}, err
	}
	user := core.User{Username: strings.TrimSpace(resp.Username)}
	if !user.Valid() {
		slog.WarnContext(ctx, "Login response without username, using submitted one", "username", username)
		user.Username = username
	}
	return user, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, pathRegister, nil, credentials{Username: username, Password: password}, nil)
}

// Logout asks the backend to revoke the session cookie and then drops every
// local credential, whether or not the backend call succeeded.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ResetCookies()
	return c.do(ctx, http.MethodPost, pathLogout, nil, nil, nil)
}
