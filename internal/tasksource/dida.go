package tasksource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultDidaAPIURL is the Dida365 open API base.
const DefaultDidaAPIURL = "https://api.dida365.com/open/v1"

// CredentialFunc returns the bearer token for the next request.
type CredentialFunc func(ctx context.Context) (string, error)

// DidaSource implements TaskSource for the Dida365 open API.
type DidaSource struct {
	baseURL    string
	credential CredentialFunc
	client     *http.Client
	info       SourceInfo
}

// DidaConfig holds configuration for the Dida source.
type DidaConfig struct {
	BaseURL    string         // API base (defaults to DefaultDidaAPIURL)
	Credential CredentialFunc // Required
	Timeout    time.Duration  // Per-request timeout (defaults to 30s)
	HTTPClient *http.Client   // Optional, overrides Timeout
}

// NewDidaSource creates a new Dida365 source.
func NewDidaSource(config DidaConfig) (*DidaSource, error) {
	if config.Credential == nil {
		return nil, fmt.Errorf("%w: dida source requires a credential", ErrInvalidConfig)
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultDidaAPIURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: bad base URL %q: %v", ErrInvalidConfig, baseURL, err)
	}

	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &DidaSource{
		baseURL:    baseURL,
		credential: config.Credential,
		client:     client,
		info: SourceInfo{
			Type:        SourceTypeDida,
			Name:        "Dida365",
			Description: fmt.Sprintf("Dida365 open API at %s", baseURL),
		},
	}, nil
}

// Info returns metadata about this source.
func (d *DidaSource) Info() SourceInfo {
	return d.info
}

// ListProjects returns all projects of the authorized user.
func (d *DidaSource) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := d.get(ctx, "list projects", "/project", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ProjectTasks returns the undone tasks in a project.
func (d *DidaSource) ProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	if projectID == "" {
		return nil, ErrProjectNotFound
	}
	return d.projectData(ctx, projectID)
}

// InboxTasks returns the undone tasks in the inbox.
func (d *DidaSource) InboxTasks(ctx context.Context) ([]Task, error) {
	return d.projectData(ctx, InboxProjectID)
}

// Close cleans up resources.
func (d *DidaSource) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *DidaSource) projectData(ctx context.Context, projectID string) ([]Task, error) {
	var data ProjectData
	path := "/project/" + url.PathEscape(projectID) + "/data"
	if err := d.get(ctx, "project data "+projectID, path, &data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// get performs an authorized GET and decodes the JSON body into out.
func (d *DidaSource) get(ctx context.Context, op, path string, out interface{}) error {
	token, err := d.credential(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	// An empty project returns an empty body on some API versions.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
