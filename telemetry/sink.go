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

// Package telemetry appends one event per handled prompt to a durable sink.
// Recording never fails the caller: a broken database or full queue degrades
// to a local fallback file, not to a failed request.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"tasknav/shared/logger"
)

// Event is one telemetry record. Output holds the already-redacted response
// payload; raw tracker data never reaches the sink.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	RequestID  string          `json:"request_id"`
	Prompt     string          `json:"prompt"`
	Capability string          `json:"capability"`
	Output     json.RawMessage `json:"output,omitempty"`
	Outcome    string          `json:"outcome"`
	CacheHit   bool            `json:"cache_hit"`
	// Retries counts failed database attempts. Only fallback records
	// carry it; successful inserts never reach the file.
	Retries int `json:"retries,omitempty"`
}

const (
	maxWriteAttempts = 3
	retryBackoff     = 100 * time.Millisecond
)

// Sink queues events and persists them asynchronously. Events land in
// Postgres when a database is configured, and in an append-only JSONL file
// when the database is absent, down, or the queue overflows.
type Sink struct {
	queue        chan Event
	workers      int
	wg           sync.WaitGroup
	db           *sql.DB
	fallbackFile *os.File
	fallbackMu   sync.Mutex
	log          *logger.Logger

	// closeMu orders Record against Shutdown: once closed is set the
	// queue channel is gone and late events go to the fallback file.
	closeMu sync.RWMutex
	closed  bool

	queued    uint64
	processed uint64
	failed    uint64
}

// NewSink creates a Sink with the given queue size and worker count.
// db may be nil; every event then goes to the fallback file.
func NewSink(queueSize, workers int, db *sql.DB, fallbackPath string) (*Sink, error) {
	fallbackFile, err := os.OpenFile(fallbackPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry fallback file: %w", err)
	}

	if queueSize <= 0 {
		queueSize = 1000
	}
	if workers <= 0 {
		workers = 2
	}

	s := &Sink{
		queue:        make(chan Event, queueSize),
		workers:      workers,
		db:           db,
		fallbackFile: fallbackFile,
		log:          logger.New("telemetry"),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.log.Info("", "Telemetry sink started", map[string]interface{}{
		"queue_size": queueSize,
		"workers":    workers,
		"fallback":   fallbackPath,
	})
	return s, nil
}

// Record enqueues an event. It never returns an error and never blocks the
// request path: a full queue, or a sink that has already shut down, spills
// the event straight to the fallback file.
func (s *Sink) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		s.fallbackMu.Lock()
		defer s.fallbackMu.Unlock()
		if err := s.writeToFallback(event); err != nil {
			s.log.ErrorWithErr(event.RequestID, "Telemetry event after shutdown, fallback write failed", err, nil)
		}
		return
	}

	select {
	case s.queue <- event:
		atomic.AddUint64(&s.queued, 1)
	default:
		s.fallbackMu.Lock()
		defer s.fallbackMu.Unlock()
		if err := s.writeToFallback(event); err != nil {
			s.log.ErrorWithErr(event.RequestID, "Telemetry queue full and fallback write failed", err, nil)
		}
	}
}

// worker drains the queue into the database, retrying with backoff before
// spilling to the fallback file.
func (s *Sink) worker(id int) {
	defer s.wg.Done()

	for event := range s.queue {
		var err error
		for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
			if err = s.writeToDB(event); err == nil {
				atomic.AddUint64(&s.processed, 1)
				break
			}
			event.Retries = attempt
			// No sleep after the final attempt; the event goes
			// straight to the fallback file.
			if attempt < maxWriteAttempts {
				time.Sleep(retryBackoff * time.Duration(attempt))
			}
		}

		if err != nil {
			atomic.AddUint64(&s.failed, 1)
			s.fallbackMu.Lock()
			if fallbackErr := s.writeToFallback(event); fallbackErr != nil {
				s.log.ErrorWithErr(event.RequestID, "Telemetry worker failed to write fallback", fallbackErr, map[string]interface{}{
					"worker": id,
				})
			}
			s.fallbackMu.Unlock()
		}
	}
}

func (s *Sink) writeToDB(event Event) error {
	if s.db == nil {
		return fmt.Errorf("telemetry database not configured")
	}

	insertQuery := `
		INSERT INTO telemetry_events (timestamp, request_id, prompt, capability, output, outcome, cache_hit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(insertQuery,
		event.Timestamp,
		event.RequestID,
		event.Prompt,
		event.Capability,
		[]byte(event.Output),
		event.Outcome,
		event.CacheHit)
	return err
}

func (s *Sink) writeToFallback(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.fallbackFile, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write fallback: %w", err)
	}
	return s.fallbackFile.Sync()
}

// Shutdown closes the queue and waits for workers to drain it. When ctx
// expires first, remaining events are flushed to the fallback file so
// nothing is lost.
func (s *Sink) Shutdown(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	close(s.queue)
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("", "Telemetry sink shutdown complete", map[string]interface{}{
			"processed": atomic.LoadUint64(&s.processed),
			"failed":    atomic.LoadUint64(&s.failed),
		})
		return s.fallbackFile.Close()
	case <-ctx.Done():
		s.fallbackMu.Lock()
		drained := 0
		for event := range s.queue {
			if err := s.writeToFallback(event); err != nil {
				s.log.ErrorWithErr(event.RequestID, "Failed to spill event during shutdown", err, nil)
			}
			drained++
		}
		s.fallbackMu.Unlock()
		s.log.Warn("", "Telemetry shutdown timed out, spilled queue to fallback", map[string]interface{}{
			"spilled": drained,
		})
		// Workers may still be finishing their in-flight event; leave the
		// fallback file open for them. The process is exiting anyway.
		return ctx.Err()
	}
}

// Stats returns a snapshot of sink counters
func (s *Sink) Stats() map[string]interface{} {
	return map[string]interface{}{
		"queued":    atomic.LoadUint64(&s.queued),
		"processed": atomic.LoadUint64(&s.processed),
		"failed":    atomic.LoadUint64(&s.failed),
		"pending":   len(s.queue),
	}
}
