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

// Package tracker is the HTTP client for the upstream project tracker API.
package tracker

import "time"

// Task represents a single tracked work item
type Task struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	AssignedTo string `json:"assigned_to"`
	Status     string `json:"status"`
	DueDate    string `json:"due_date"`
}

// DueDateParsed parses the task's due date. The tracker stores dates as
// YYYY-MM-DD strings and occasionally returns malformed values, so callers
// must check ok before using the time.
func (t Task) DueDateParsed() (time.Time, bool) {
	parsed, err := time.Parse("2006-01-02", t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// IsDone reports whether the task has reached a terminal status
func (t Task) IsDone() bool {
	return t.Status == "done"
}

// Project represents a tracked project with its tasks
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Tasks       []Task `json:"tasks"`
}
