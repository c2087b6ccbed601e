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

// Package executor runs routed capabilities against the tracker and
// normalizes the results into tagged variants.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tasknav/router"
	"tasknav/shared/logger"
	"tasknav/tracker"
)

// FallbackMessage is the fixed payload for unrecognized prompts
const FallbackMessage = "Unsupported request. Try asking about overdue tasks for a person, a project by number, or everything someone is working on."

// TrackerAPI is the slice of the tracker client the executor needs
type TrackerAPI interface {
	ListTasks(ctx context.Context, assignee string) ([]tracker.Task, error)
	ListProjects(ctx context.Context, status string) ([]tracker.Project, error)
	GetProject(ctx context.Context, id int) (*tracker.Project, error)
}

// Executor binds capability names to tracker calls
type Executor struct {
	api TrackerAPI
	log *logger.Logger
	now func() time.Time
}

// New creates an Executor over the given tracker API
func New(api TrackerAPI) *Executor {
	return &Executor{
		api: api,
		log: logger.New("executor"),
		now: time.Now,
	}
}

// Execute runs the handler bound to the matched capability. The fallback
// capability never touches the tracker. A tracker.ErrNotFound on a
// well-formed ID lookup becomes a KindNotFound result rather than an error;
// upstream failures are returned to the caller.
func (e *Executor) Execute(ctx context.Context, requestID string, match router.MatchResult) (*Result, error) {
	switch match.Capability {
	case router.CapabilityFetchAllTasks:
		return e.fetchAllTasks(ctx, match.Argument)
	case router.CapabilityFetchOverdueTasks:
		return e.fetchOverdueTasks(ctx, match.Argument)
	case router.CapabilityListProjects:
		return e.listProjects(ctx)
	case router.CapabilityGetProjectByID:
		return e.getProjectByID(ctx, requestID, match.Argument)
	case router.CapabilityFallback:
		return &Result{Kind: KindUnsupported, Message: FallbackMessage}, nil
	default:
		e.log.Warn(requestID, "Unknown capability treated as fallback", map[string]interface{}{
			"capability": match.Capability,
		})
		return &Result{Kind: KindUnsupported, Message: FallbackMessage}, nil
	}
}

func (e *Executor) fetchAllTasks(ctx context.Context, assignee string) (*Result, error) {
	tasks, err := e.api.ListTasks(ctx, assignee)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindTaskList, Tasks: filterAssignee(tasks, assignee)}, nil
}

func (e *Executor) fetchOverdueTasks(ctx context.Context, assignee string) (*Result, error) {
	tasks, err := e.api.ListTasks(ctx, assignee)
	if err != nil {
		return nil, err
	}

	today := e.today()
	overdue := make([]tracker.Task, 0, len(tasks))
	for _, t := range filterAssignee(tasks, assignee) {
		if t.IsDone() {
			continue
		}
		due, ok := t.DueDateParsed()
		if !ok {
			// Malformed due dates cannot be judged overdue; skip them
			continue
		}
		if due.Before(today) {
			overdue = append(overdue, t)
		}
	}
	return &Result{Kind: KindTaskList, Tasks: overdue}, nil
}

func (e *Executor) listProjects(ctx context.Context) (*Result, error) {
	projects, err := e.api.ListProjects(ctx, "active")
	if err != nil {
		return nil, err
	}

	active := make([]tracker.Project, 0, len(projects))
	for _, p := range projects {
		if p.Status == "active" {
			active = append(active, p)
		}
	}
	return &Result{Kind: KindProjectList, Projects: active}, nil
}

func (e *Executor) getProjectByID(ctx context.Context, requestID, arg string) (*Result, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		// The router only emits numeric arguments for this capability
		return nil, fmt.Errorf("executor: non-numeric project id %q: %w", arg, err)
	}

	project, err := e.api.GetProject(ctx, id)
	if errors.Is(err, tracker.ErrNotFound) {
		e.log.Info(requestID, "Project not found", map[string]interface{}{"project_id": id})
		return &Result{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("No project with id %d exists.", id),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindProjectDetail, Project: project}, nil
}

// filterAssignee keeps tasks assigned to the named person. The tracker
// already filters server side; this guards against trackers that ignore the
// query parameter.
func filterAssignee(tasks []tracker.Task, assignee string) []tracker.Task {
	out := make([]tracker.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.EqualFold(t.AssignedTo, assignee) {
			out = append(out, t)
		}
	}
	return out
}

// today returns midnight UTC of the current day; a task is overdue only
// once its due date is a full day behind.
func (e *Executor) today() time.Time {
	now := e.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Capabilities returns the names of every capability this package can
// execute, fallback included. Logged at startup.
func Capabilities() []string {
	return []string{
		router.CapabilityFetchAllTasks,
		router.CapabilityFetchOverdueTasks,
		router.CapabilityListProjects,
		router.CapabilityGetProjectByID,
		router.CapabilityFallback,
	}
}
