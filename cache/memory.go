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
	"sync"
	"time"
)

type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is a thread-safe in-process response cache with lazy TTL
// eviction. Expired entries are removed when read, or by Cleanup.
type MemoryStore struct {
	entries map[string]*memoryEntry
	ttl     time.Duration
	mu      sync.Mutex
	stats   Stats
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore with the specified TTL
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the entry for key, or a miss if absent or expired.
// An expired entry is evicted on read.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[key]
	if !exists {
		s.stats.Misses++
		return nil, false, nil
	}
	if e.isExpired(s.now()) {
		delete(s.entries, key)
		s.stats.Evictions++
		s.stats.Misses++
		return nil, false, nil
	}

	s.stats.Hits++
	return e.entry, true, nil
}

// Set stores the entry under key with the store's TTL
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{
		entry:     entry,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Cleanup removes all expired entries and returns how many were evicted
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, e := range s.entries {
		if e.isExpired(now) {
			delete(s.entries, key)
			evicted++
		}
	}
	s.stats.Evictions += int64(evicted)
	return evicted
}

// Stats returns a snapshot of the cache counters
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Len returns the number of entries currently held, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op for the in-process store
func (s *MemoryStore) Close() error {
	return nil
}
