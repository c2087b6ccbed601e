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

package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasknav/shared/logger"
)

func fallbackPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "telemetry_fallback.jsonl")
}

func readFallbackEvents(t *testing.T, path string) []Event {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Event
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		events = append(events, e)
	}
	return events
}

func TestSinkWritesToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO telemetry_events").
		WithArgs(sqlmock.AnyArg(), "req-1", "show me all overdue tasks assigned to alice",
			"fetch_overdue_tasks", sqlmock.AnyArg(), "success", false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink, err := NewSink(10, 1, db, fallbackPath(t))
	require.NoError(t, err)

	sink.Record(Event{
		RequestID:  "req-1",
		Prompt:     "show me all overdue tasks assigned to alice",
		Capability: "fetch_overdue_tasks",
		Output:     json.RawMessage(`{"kind":"task_list","tasks":[]}`),
		Outcome:    "success",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkFallsBackWhenDatabaseFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	// All three attempts fail
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO telemetry_events").
			WillReturnError(assert.AnError)
	}

	path := fallbackPath(t)
	sink, err := NewSink(10, 1, db, path)
	require.NoError(t, err)

	sink.Record(Event{RequestID: "req-2", Prompt: "list all projects", Outcome: "success"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	events := readFallbackEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "req-2", events[0].RequestID)
	// The fallback record carries the failed attempt count
	assert.Equal(t, 3, events[0].Retries)

	stats := sink.Stats()
	assert.Equal(t, uint64(1), stats["failed"])
}

func TestSinkRecordAfterShutdown(t *testing.T) {
	path := fallbackPath(t)
	sink, err := NewSink(10, 1, nil, path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	// A handler still in flight during process exit must not panic the sink
	assert.NotPanics(t, func() {
		sink.Record(Event{RequestID: "late-1", Outcome: "success"})
	})

	// When the fallback file is still open, as after a shutdown timeout,
	// the late event lands in it.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	closedSink := &Sink{
		closed:       true,
		fallbackFile: f,
		log:          logger.New("telemetry"),
	}
	closedSink.Record(Event{RequestID: "late-2", Outcome: "success"})
	require.NoError(t, f.Close())

	events := readFallbackEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "late-2", events[0].RequestID)
}

func TestSinkWithoutDatabase(t *testing.T) {
	path := fallbackPath(t)
	sink, err := NewSink(10, 1, nil, path)
	require.NoError(t, err)

	sink.Record(Event{RequestID: "req-3", Prompt: "asdf", Capability: "fallback", Outcome: "fallback"})
	sink.Record(Event{RequestID: "req-4", Prompt: "show project 2", Capability: "get_project_by_id", Outcome: "success", CacheHit: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	events := readFallbackEvents(t, path)
	require.Len(t, events, 2)

	byID := map[string]Event{}
	for _, e := range events {
		byID[e.RequestID] = e
	}
	assert.Equal(t, "fallback", byID["req-3"].Outcome)
	assert.True(t, byID["req-4"].CacheHit)
	assert.False(t, byID["req-3"].Timestamp.IsZero())
}

func TestSinkQueueOverflowSpillsToFallback(t *testing.T) {
	path := fallbackPath(t)
	// Zero workers so nothing drains the queue
	sink := &Sink{
		queue: make(chan Event, 1),
		log:   logger.New("telemetry"),
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	sink.fallbackFile = f

	sink.Record(Event{RequestID: "queued"})
	sink.Record(Event{RequestID: "spilled"})

	events := readFallbackEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "spilled", events[0].RequestID)
	require.NoError(t, f.Close())
}

func TestSinkShutdownTimeoutDrainsQueue(t *testing.T) {
	path := fallbackPath(t)
	sink, err := NewSink(10, 1, nil, path)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sink.Record(Event{RequestID: "req", Prompt: "x", Outcome: "success"})
	}

	// Immediate deadline forces the spill path; every queued event must
	// still land in the fallback file one way or the other.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = sink.Shutdown(ctx)

	// Workers keep draining after ctx expiry until the channel closes, so
	// give them a moment before counting.
	time.Sleep(2 * time.Second)

	events := readFallbackEvents(t, path)
	assert.Len(t, events, 3)
}
