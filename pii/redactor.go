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

// Package pii scrubs personally identifiable information from outbound text.
package pii

import "regexp"

// PIIType represents a category of personally identifiable information
type PIIType string

const (
	PIITypeEmail PIIType = "email"
	PIITypeSSN   PIIType = "ssn"
	PIITypePhone PIIType = "phone"
)

// Pattern pairs a compiled expression with its replacement placeholder
type Pattern struct {
	Type        PIIType
	Pattern     *regexp.Regexp
	Replacement string
}

// Redactor replaces PII matches with typed placeholders. The zero set of
// patterns never matches a placeholder it emits, so redaction is idempotent.
type Redactor struct {
	patterns []Pattern
}

// NewRedactor creates a Redactor with the default pattern set.
// Order matters: SSN must run before phone so a 3-2-4 digit group is not
// consumed by the dashed phone pattern.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []Pattern{
			{
				Type:        PIITypeEmail,
				Pattern:     regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.[a-zA-Z]{2,6}\b`),
				Replacement: "[REDACTED_EMAIL]",
			},
			{
				Type:        PIITypeSSN,
				Pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				Replacement: "[REDACTED_SSN]",
			},
			{
				Type:        PIITypePhone,
				Pattern:     regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
				Replacement: "[REDACTED_PHONE]",
			},
			{
				Type:        PIITypePhone,
				Pattern:     regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}`),
				Replacement: "[REDACTED_PHONE]",
			},
			{
				Type:        PIITypePhone,
				Pattern:     regexp.MustCompile(`\b\d{10}\b`),
				Replacement: "[REDACTED_PHONE]",
			},
		},
	}
}

// Redact returns the input with every PII match replaced by its placeholder.
// The input is never mutated and non-matching text passes through unchanged.
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.Pattern.ReplaceAllString(text, p.Replacement)
	}
	return text
}

// Detect reports which PII types appear in the text, in pattern order.
// Backs the redaction metrics; the matched values are never returned.
func (r *Redactor) Detect(text string) []PIIType {
	seen := make(map[PIIType]bool)
	var types []PIIType
	for _, p := range r.patterns {
		if seen[p.Type] {
			continue
		}
		if p.Pattern.MatchString(text) {
			seen[p.Type] = true
			types = append(types, p.Type)
		}
	}
	return types
}
