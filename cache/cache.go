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

// Package cache stores finished prompt responses keyed by normalized prompt
// text so repeated questions skip the tracker entirely.
package cache

import (
	"context"
	"time"
)

// Entry is a cached response. Payload holds the already-redacted response
// body; Artifact points at the rendered report produced on the original
// request and is reused verbatim on a hit.
type Entry struct {
	Payload    []byte    `json:"payload"`
	Capability string    `json:"capability"`
	Outcome    string    `json:"outcome"`
	Artifact   string    `json:"artifact,omitempty"`
	StoredAt   time.Time `json:"stored_at"`
}

// Store is the response cache interface. Get returns (nil, false, nil) on a
// miss; an error means the backend itself failed and callers should treat it
// as a miss rather than fail the request.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Close() error
}

// Stats tracks cache performance counters
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}
