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

// Package render turns execution results into a plain-text report document
// and stores it, returning an artifact reference for the response.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tasknav/executor"
)

// ArtifactStore persists a rendered document and returns its reference
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Renderer formats results and writes them through an ArtifactStore
type Renderer struct {
	store ArtifactStore
}

// New creates a Renderer over the given store
func New(store ArtifactStore) *Renderer {
	return &Renderer{store: store}
}

// Render formats the result as a text report and saves it. The returned
// reference is reused verbatim on later cache hits, so rendering happens at
// most once per distinct response.
func (r *Renderer) Render(ctx context.Context, result *executor.Result) (string, error) {
	name := fmt.Sprintf("output_%s.txt", uuid.NewString()[:8])
	return r.store.Save(ctx, name, []byte(Format(result)))
}

// Format produces the report body for a result. Deterministic: equal
// results always format to equal bytes.
func Format(result *executor.Result) string {
	var b strings.Builder
	b.WriteString("Tasknav Report\n")
	b.WriteString("==============\n\n")

	switch result.Kind {
	case executor.KindTaskList:
		fmt.Fprintf(&b, "Tasks (%d)\n\n", len(result.Tasks))
		if len(result.Tasks) == 0 {
			b.WriteString("No matching tasks.\n")
		}
		for _, t := range result.Tasks {
			fmt.Fprintf(&b, "- #%d %s | assignee: %s | status: %s | due: %s\n",
				t.ID, t.Title, t.AssignedTo, t.Status, t.DueDate)
		}

	case executor.KindProjectList:
		fmt.Fprintf(&b, "Projects (%d)\n\n", len(result.Projects))
		if len(result.Projects) == 0 {
			b.WriteString("No active projects.\n")
		}
		for _, p := range result.Projects {
			fmt.Fprintf(&b, "- #%d %s [%s] %s to %s\n",
				p.ID, p.Name, p.Status, p.StartDate, p.EndDate)
		}

	case executor.KindProjectDetail:
		p := result.Project
		fmt.Fprintf(&b, "Project #%d: %s\n", p.ID, p.Name)
		fmt.Fprintf(&b, "Status: %s\nTimeline: %s to %s\n", p.Status, p.StartDate, p.EndDate)
		if p.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", p.Description)
		}
		fmt.Fprintf(&b, "\nTasks (%d)\n", len(p.Tasks))
		for _, t := range p.Tasks {
			fmt.Fprintf(&b, "- #%d %s | assignee: %s | status: %s | due: %s\n",
				t.ID, t.Title, t.AssignedTo, t.Status, t.DueDate)
		}

	case executor.KindNotFound, executor.KindUnsupported:
		b.WriteString(result.Message)
		b.WriteString("\n")
	}

	return b.String()
}
