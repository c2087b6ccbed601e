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

package router

import (
	"fmt"
	"sort"
	"strings"
)

// MatchResult is the routing decision for one prompt. Exactly one per
// request. Rationale is free text kept for the telemetry trail.
type MatchResult struct {
	Capability string
	Argument   string
	Rationale  string
}

// Router maps a Prompt to exactly one MatchResult
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over the given registry
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

type candidate struct {
	descriptor Descriptor
	trigger    string
	order      int
}

// Route selects a capability for the prompt. Candidates are ranked by
// priority, then registration order. A candidate whose required argument
// cannot be extracted is skipped in favor of the next ranked match; only
// when no candidate qualifies does the prompt fall back. Routing never
// fails: the fallback is a valid terminal result, not an error.
func (r *Router) Route(p Prompt) MatchResult {
	var candidates []candidate
	for order, d := range r.registry.List() {
		for _, trigger := range d.Triggers {
			if containsTrigger(p.Normalized, trigger) {
				candidates = append(candidates, candidate{descriptor: d, trigger: trigger, order: order})
				break
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].descriptor.Priority != candidates[j].descriptor.Priority {
			return candidates[i].descriptor.Priority > candidates[j].descriptor.Priority
		}
		return candidates[i].order < candidates[j].order
	})

	for _, c := range candidates {
		arg, ok := extractArgument(p, c.descriptor.ArgShape)
		if !ok {
			continue
		}
		return MatchResult{
			Capability: c.descriptor.Name,
			Argument:   arg,
			Rationale:  fmt.Sprintf("trigger %q matched capability %s", c.trigger, c.descriptor.Name),
		}
	}

	if len(candidates) > 0 {
		return MatchResult{
			Capability: CapabilityFallback,
			Rationale:  "matched capabilities required an argument that could not be extracted",
		}
	}

	return MatchResult{
		Capability: CapabilityFallback,
		Rationale:  "no trigger phrase matched",
	}
}

// containsTrigger reports whether the trigger occurs in the normalized
// prompt at word boundaries. Plain substring search lets short triggers
// like "late" fire inside words like "related".
func containsTrigger(normalized, trigger string) bool {
	for idx := 0; ; {
		i := strings.Index(normalized[idx:], trigger)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(trigger)
		if (start == 0 || !isWordByte(normalized[start-1])) &&
			(end == len(normalized) || !isWordByte(normalized[end])) {
			return true
		}
		idx = start + 1
	}
}

// isWordByte works on normalized (lowercased) text
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
