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

// Package router classifies free-text prompts into a fixed set of backend
// capabilities using deterministic keyword matching.
package router

import (
	"errors"
	"fmt"
)

// ErrDuplicateCapability means a capability name was registered twice
var ErrDuplicateCapability = errors.New("router: duplicate capability")

// ArgShape describes what argument a capability needs extracted from the prompt
type ArgShape int

const (
	// ArgNone means the capability takes no argument
	ArgNone ArgShape = iota
	// ArgAssignee means the capability needs a person's name
	ArgAssignee
	// ArgProjectID means the capability needs a numeric project ID
	ArgProjectID
)

// Capability names routed by the registry. Handlers are bound to these
// names by the executor.
const (
	CapabilityFetchAllTasks     = "fetch_all_tasks"
	CapabilityFetchOverdueTasks = "fetch_overdue_tasks"
	CapabilityListProjects      = "list_projects"
	CapabilityGetProjectByID    = "get_project_by_id"
	CapabilityFallback          = "fallback"
)

// Descriptor describes one routable capability. Immutable after registration.
type Descriptor struct {
	Name     string
	Triggers []string
	ArgShape ArgShape
	// Priority breaks ties between capabilities whose triggers both match.
	// Higher wins; equal priority falls back to registration order.
	Priority int
}

// Registry is the static catalog of capabilities. It is populated once at
// startup and read-only during request handling, so lookups take no lock.
type Registry struct {
	descriptors []Descriptor
	byName      map[string]int
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
	}
}

// Register adds a capability descriptor. Returns ErrDuplicateCapability if
// the name is already taken.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("router: capability name is required")
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, d.Name)
	}
	r.byName[d.Name] = len(r.descriptors)
	r.descriptors = append(r.descriptors, d)
	return nil
}

// List returns descriptors in registration order
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// DefaultRegistry builds the standard tasknav capability set. The overdue
// capability carries the full synonym lexicon because phrases like "past the
// deadline" never contain the word "overdue".
func DefaultRegistry() *Registry {
	r := NewRegistry()

	descriptors := []Descriptor{
		{
			Name:     CapabilityFetchOverdueTasks,
			Triggers: []string{"overdue", "past due", "missed", "late", "past the deadline", "behind schedule"},
			ArgShape: ArgAssignee,
			Priority: 10,
		},
		{
			Name:     CapabilityGetProjectByID,
			Triggers: []string{"project"},
			ArgShape: ArgProjectID,
			Priority: 8,
		},
		{
			Name:     CapabilityListProjects,
			Triggers: []string{"projects", "project list"},
			ArgShape: ArgNone,
			Priority: 6,
		},
		{
			Name:     CapabilityFetchAllTasks,
			Triggers: []string{"tasks", "task", "assigned to", "working on", "everything"},
			ArgShape: ArgAssignee,
			Priority: 5,
		},
	}

	for _, d := range descriptors {
		// Names are compile-time constants; duplicates cannot occur here
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}

	return r
}
