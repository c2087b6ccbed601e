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
	"regexp"
	"strings"
	"unicode"
)

// projectIDRegex matches "project 2", "project #2", "project#2"
var projectIDRegex = regexp.MustCompile(`project[\s#]*(\d+)`)

// assigneeStopwords are capitalized sentence starters and domain words that
// must never be mistaken for a person's name.
var assigneeStopwords = map[string]bool{
	"show": true, "list": true, "get": true, "give": true, "display": true,
	"find": true, "fetch": true, "tell": true, "what": true, "which": true,
	"who": true, "whose": true, "where": true, "when": true, "how": true,
	"is": true, "are": true, "the": true, "a": true, "an": true, "me": true,
	"my": true, "all": true, "any": true, "everything": true, "and": true,
	"or": true, "of": true, "for": true, "to": true, "on": true, "in": true,
	"its": true, "it": true, "task": true, "tasks": true, "project": true,
	"projects": true, "overdue": true, "late": true, "missed": true,
	"assigned": true, "working": true, "due": true, "please": true,
	"i": true, "we": true, "you": true, "per": true, "by": true,
}

// extractArgument pulls the argument a capability needs out of the prompt.
// Returns ok=false when the shape cannot be satisfied, which routes the
// prompt onward instead of guessing.
func extractArgument(p Prompt, shape ArgShape) (string, bool) {
	switch shape {
	case ArgNone:
		return "", true
	case ArgProjectID:
		return extractProjectID(p.Normalized)
	case ArgAssignee:
		return extractAssignee(p.Raw)
	default:
		return "", false
	}
}

func extractProjectID(normalized string) (string, bool) {
	m := projectIDRegex.FindStringSubmatch(normalized)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// extractAssignee scans the raw prompt for the first capitalized token that
// is not a known stopword. Casing is the only signal distinguishing "Alice"
// from ordinary words, which is why this reads Raw rather than Normalized.
func extractAssignee(raw string) (string, bool) {
	for _, token := range strings.Fields(raw) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		token = strings.TrimSuffix(token, "'s")
		if token == "" {
			continue
		}
		runes := []rune(token)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		if assigneeStopwords[strings.ToLower(token)] {
			continue
		}
		return token, true
	}
	return "", false
}
