// internal/gameclient/client.go
//
// HTTP JSON client for the score service. Used by the terminal player and
// by anything else that wants to submit scores or read the leaderboard from
// outside the server process.

package gameclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"memorymatch/internal/score"
)

// ErrRejected is returned when the service answers with success=false.
// The service's message, when present, is wrapped around it.
var ErrRejected = errors.New("request rejected")

// Client talks to one score-service base URL.
type Client struct {
	base string
	http *http.Client
}

// New constructs a Client. base is e.g. "http://localhost:8080".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRes struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Login verifies credentials and returns the user id.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res authRes
	if err := c.postJSON(ctx, "/login", credentialsReq{Username: username, Password: password}, &res); err != nil {
		return "", err
	}
	if !res.Success {
		return "", rejection(res.Message)
	}
	return res.UserID, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	var res authRes
	if err := c.postJSON(ctx, "/register", credentialsReq{Username: username, Password: password}, &res); err != nil {
		return err
	}
	if !res.Success {
		return rejection(res.Message)
	}
	return nil
}

type saveScoreReq struct {
	UserID        string `json:"userId"`
	Score         int    `json:"score"`
	TimeRemaining int    `json:"timeRemaining"`
}

// SaveScore appends one score record for userID.
func (c *Client) SaveScore(ctx context.Context, userID string, scoreVal, timeRemaining int) error {
	var res authRes
	if err := c.postJSON(ctx, "/save-score", saveScoreReq{UserID: userID, Score: scoreVal, TimeRemaining: timeRemaining}, &res); err != nil {
		return err
	}
	if !res.Success {
		return rejection(res.Message)
	}
	return nil
}

// Leaderboard fetches the ranked score list.
func (c *Client) Leaderboard(ctx context.Context) ([]score.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/leaderboard", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard: unexpected status %d", resp.StatusCode)
	}
	var entries []score.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, nil
}

// postJSON sends a JSON body and decodes the JSON response into out.
// Non-2xx statuses are not errors here; callers inspect the success flag so
// service-level rejections (401, 409) carry their message through.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

func rejection(msg string) error {
	if msg == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, msg)
}
