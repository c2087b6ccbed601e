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
	"strings"
	"time"
)

// Prompt is one incoming request. Raw keeps the original casing for
// proper-noun extraction; Normalized is what matching and cache keying use.
// Never mutated after construction.
type Prompt struct {
	Raw        string
	Normalized string
	ReceivedAt time.Time
}

// NewPrompt normalizes rawText (lowercase, whitespace collapsed) and stamps
// the receive time.
func NewPrompt(rawText string) Prompt {
	return Prompt{
		Raw:        rawText,
		Normalized: Normalize(rawText),
		ReceivedAt: time.Now().UTC(),
	}
}

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. Two prompts with equal normalized text share a cache entry.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
