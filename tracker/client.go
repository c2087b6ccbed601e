// Copyright 2025 Tasknav
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default request timeout against the tracker
	DefaultTimeout = 10 * time.Second
	// maxResponseSize caps response bodies at 10MB
	maxResponseSize = 10 * 1024 * 1024
)

var (
	// ErrNotFound means the requested resource does not exist upstream
	ErrNotFound = errors.New("tracker: resource not found")
	// ErrUpstream means the tracker failed or was unreachable; the request
	// may succeed on retry
	ErrUpstream = errors.New("tracker: upstream unavailable")
)

// Client talks to the project tracker REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the tracker at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ListTasks fetches tasks, optionally filtered to a single assignee
func (c *Client) ListTasks(ctx context.Context, assignee string) ([]Task, error) {
	path := "/tasks"
	if assignee != "" {
		path += "?assignee=" + url.QueryEscape(assignee)
	}
	var tasks []Task
	if err := c.getJSON(ctx, path, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListProjects fetches projects, optionally filtered by status
func (c *Client) ListProjects(ctx context.Context, status string) ([]Project, error) {
	path := "/projects"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var projects []Project
	if err := c.getJSON(ctx, path, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches a single project by numeric ID. Returns ErrNotFound
// when no such project exists.
func (c *Client) GetProject(ctx context.Context, id int) (*Project, error) {
	var project Project
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d", id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("tracker: %s returned unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", ErrUpstream, path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstream, path, err)
	}

	return nil
}
