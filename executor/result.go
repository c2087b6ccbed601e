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

package executor

import "tasknav/tracker"

// ResultKind tags the variant held by a Result
type ResultKind string

const (
	KindTaskList      ResultKind = "task_list"
	KindProjectList   ResultKind = "project_list"
	KindProjectDetail ResultKind = "project_detail"
	KindUnsupported   ResultKind = "unsupported"
	KindNotFound      ResultKind = "not_found"
)

// Result is the structured outcome of executing one capability. Exactly one
// variant field is populated, selected by Kind, so an empty task list is
// distinguishable from a fallback.
type Result struct {
	Kind     ResultKind        `json:"kind"`
	Tasks    []tracker.Task    `json:"tasks,omitempty"`
	Projects []tracker.Project `json:"projects,omitempty"`
	Project  *tracker.Project  `json:"project,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// RedactFunc scrubs PII from a single text field
type RedactFunc func(string) string

// Redact returns a copy of the Result with every text field passed through
// fn. Structural fields (ids, statuses, dates) are left untouched. The
// receiver is never mutated.
func (r *Result) Redact(fn RedactFunc) *Result {
	out := &Result{
		Kind:    r.Kind,
		Message: fn(r.Message),
	}
	if r.Tasks != nil {
		out.Tasks = redactTasks(r.Tasks, fn)
	}
	if r.Projects != nil {
		out.Projects = make([]tracker.Project, len(r.Projects))
		for i, p := range r.Projects {
			out.Projects[i] = redactProject(p, fn)
		}
	}
	if r.Project != nil {
		p := redactProject(*r.Project, fn)
		out.Project = &p
	}
	return out
}

func redactTasks(tasks []tracker.Task, fn RedactFunc) []tracker.Task {
	out := make([]tracker.Task, len(tasks))
	for i, t := range tasks {
		t.Title = fn(t.Title)
		t.AssignedTo = fn(t.AssignedTo)
		out[i] = t
	}
	return out
}

func redactProject(p tracker.Project, fn RedactFunc) tracker.Project {
	p.Name = fn(p.Name)
	p.Description = fn(p.Description)
	p.Tasks = redactTasks(p.Tasks, fn)
	return p
}
