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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10 * time.Minute)

	entry := &Entry{
		Payload:    []byte(`{"tasks":[]}`),
		Capability: "fetch_all_tasks",
		Outcome:    "success",
		StoredAt:   time.Now(),
	}

	// Miss before set
	_, found, err := store.Get(ctx, "show me all tasks")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "show me all tasks", entry))

	got, found, err := store.Get(ctx, "show me all tasks")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Payload, got.Payload)
	assert.Equal(t, "fetch_all_tasks", got.Capability)

	// Different key is still a miss
	_, found, err = store.Get(ctx, "show me all projects")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10 * time.Minute)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "list projects", &Entry{Payload: []byte(`{}`)}))

	// Just before expiry the entry is served
	current = current.Add(10*time.Minute - time.Second)
	_, found, err := store.Get(ctx, "list projects")
	require.NoError(t, err)
	assert.True(t, found)

	// Past expiry it is evicted on read
	current = current.Add(2 * time.Second)
	_, found, err = store.Get(ctx, "list projects")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, store.Len())

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestMemoryStoreSetRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10 * time.Minute)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "k", &Entry{Payload: []byte(`1`)}))

	current = current.Add(9 * time.Minute)
	require.NoError(t, store.Set(ctx, "k", &Entry{Payload: []byte(`2`)}))

	// Original TTL would have lapsed; the rewrite restarted the clock
	current = current.Add(5 * time.Minute)
	got, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`2`), got.Payload)
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "a", &Entry{}))
	require.NoError(t, store.Set(ctx, "b", &Entry{}))

	current = current.Add(30 * time.Second)
	require.NoError(t, store.Set(ctx, "c", &Entry{}))

	current = current.Add(45 * time.Second)
	evicted := store.Cleanup()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, store.Len())

	_, found, err := store.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreDefaultTTL(t *testing.T) {
	store := NewMemoryStore(0)
	assert.Equal(t, 10*time.Minute, store.ttl)
}
