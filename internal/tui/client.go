package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/server"
	"github.com/fentz26/simshell/internal/shell"
)

// DefaultClientTimeout covers a dispatch including simulated latency and a
// remote oracle call.
const DefaultClientTimeout = 70 * time.Second

// Client wraps HTTP calls to a simshell server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return shell.ErrBusy
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Dispatch runs command on the server's session.
func (c *Client) Dispatch(ctx context.Context, command string) (*shell.Response, error) {
	var resp shell.Response
	if err := c.do(ctx, http.MethodPost, "/dispatch", server.DispatchRequest{Command: command}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Categories fetches the active categories.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var resp server.CategoriesResponse
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// ToggleCategory flips cat and returns the resulting set.
func (c *Client) ToggleCategory(ctx context.Context, cat models.Category) ([]models.Category, error) {
	cur, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	found := false
	for _, x := range cur {
		if x == cat {
			found = true
			continue
		}
		names = append(names, x.String())
	}
	if !found {
		names = append(names, cat.String())
	}

	var resp server.CategoriesResponse
	if err := c.do(ctx, http.MethodPut, "/categories", server.CategoriesRequest{Categories: names}, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CustomCommands lists the session's custom commands.
func (c *Client) CustomCommands(ctx context.Context) ([]models.CustomCommand, error) {
	var infos []server.CommandInfo
	if err := c.do(ctx, http.MethodGet, "/commands", nil, &infos); err != nil {
		return nil, err
	}
	var out []models.CustomCommand
	for _, info := range infos {
		if info.Custom {
			out = append(out, models.CustomCommand{
				Name:        info.Name,
				Short:       info.Usage,
				Description: info.Description,
			})
		}
	}
	return out, nil
}

// ExportLog downloads the session log as CSV. An empty log yields "".
func (c *Client) ExportLog(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/log", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// Health checks the server and returns its health payload.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var h server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
