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

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasknav/cache"
	"tasknav/executor"
	"tasknav/pii"
	"tasknav/router"
	"tasknav/telemetry"
	"tasknav/tracker"
)

// fakeTrackerAPI serves canned data and counts calls
type fakeTrackerAPI struct {
	mu       sync.Mutex
	tasks    []tracker.Task
	projects []tracker.Project
	err      error
	calls    int
}

func (f *fakeTrackerAPI) ListTasks(_ context.Context, assignee string) ([]tracker.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []tracker.Task
	for _, t := range f.tasks {
		if assignee == "" || t.AssignedTo == assignee {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrackerAPI) ListProjects(_ context.Context, status string) ([]tracker.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func (f *fakeTrackerAPI) GetProject(_ context.Context, id int) (*tracker.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, tracker.ErrNotFound
}

func (f *fakeTrackerAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingSink captures every telemetry event
type recordingSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *recordingSink) Record(event telemetry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.Event, len(s.events))
	copy(out, s.events)
	return out
}

// fakeRenderer returns sequential artifact names, optionally failing
type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (r *fakeRenderer) Render(_ context.Context, _ *executor.Result) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return "", fmt.Errorf("renderer exploded")
	}
	return fmt.Sprintf("output_%08d.txt", r.calls), nil
}

type testHarness struct {
	orch     *Orchestrator
	api      *fakeTrackerAPI
	sink     *recordingSink
	renderer *fakeRenderer
	cache    *cache.MemoryStore
}

func newHarness(api *fakeTrackerAPI) *testHarness {
	sink := &recordingSink{}
	renderer := &fakeRenderer{}
	store := cache.NewMemoryStore(10 * time.Minute)

	exec := executor.New(api)
	orch := New(
		router.NewRouter(router.DefaultRegistry()),
		exec,
		pii.NewRedactor(),
		store,
		sink,
		renderer,
	)

	return &testHarness{orch: orch, api: api, sink: sink, renderer: renderer, cache: store}
}

func seedAPI() *fakeTrackerAPI {
	return &fakeTrackerAPI{
		tasks: []tracker.Task{
			{Title: "Email alice@example.com the summary", AssignedTo: "Alice", Status: "open", DueDate: "2020-01-01"},
			{Title: "Plan launch", AssignedTo: "Alice", Status: "open", DueDate: "2099-01-01"},
		},
		projects: []tracker.Project{
			{ID: 2, Name: "Hermes", Status: "active"},
		},
	}
}

// Responses that contained PII bump the per-type redaction counter once
// per request; cache hits skip redaction and must not move it.
func TestHandlePromptCountsRedactions(t *testing.T) {
	h := newHarness(seedAPI())
	emailCounter := promRedactionsTotal.WithLabelValues(string(pii.PIITypeEmail))
	before := testutil.ToFloat64(emailCounter)

	resp := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")
	require.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Equal(t, before+1, testutil.ToFloat64(emailCounter))

	cached := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")
	require.True(t, cached.Cached)
	assert.Equal(t, before+1, testutil.ToFloat64(emailCounter))
}

func TestHandlePromptSuccess(t *testing.T) {
	h := newHarness(seedAPI())

	resp := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")

	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.Artifact)
	assert.Empty(t, resp.ArtifactError)

	var result executor.Result
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, executor.KindTaskList, result.Kind)
	require.Len(t, result.Tasks, 1)

	// PII scrubbed before the payload leaves the pipeline
	assert.Equal(t, "Email [REDACTED_EMAIL] the summary", result.Tasks[0].Title)

	events := h.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "fetch_overdue_tasks", events[0].Capability)
	assert.Equal(t, OutcomeSuccess, events[0].Outcome)
	assert.False(t, events[0].CacheHit)
}

func TestHandlePromptCacheHit(t *testing.T) {
	h := newHarness(seedAPI())

	first := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")
	// Same normalized text, different casing and spacing
	second := h.orch.HandlePrompt(context.Background(), "  show me ALL overdue   tasks assigned to alice ")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)

	// Byte-identical payloads and a reused artifact reference
	assert.Equal(t, []byte(first.Payload), []byte(second.Payload))
	assert.Equal(t, first.Artifact, second.Artifact)

	// The tracker was consulted exactly once, and nothing re-rendered
	assert.Equal(t, 1, h.api.callCount())
	assert.Equal(t, 1, h.renderer.calls)

	// One telemetry event per request, the second marked as a hit
	events := h.sink.all()
	require.Len(t, events, 2)
	assert.False(t, events[0].CacheHit)
	assert.True(t, events[1].CacheHit)
}

func TestHandlePromptFallback(t *testing.T) {
	h := newHarness(seedAPI())

	resp := h.orch.HandlePrompt(context.Background(), "asdkjasd random text")

	assert.Equal(t, OutcomeFallback, resp.Outcome)

	var result executor.Result
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, executor.KindUnsupported, result.Kind)
	assert.Equal(t, executor.FallbackMessage, result.Message)

	// The tracker is never consulted for unrecognized prompts
	assert.Equal(t, 0, h.api.callCount())

	events := h.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, OutcomeFallback, events[0].Outcome)
}

func TestHandlePromptNotFound(t *testing.T) {
	h := newHarness(seedAPI())

	resp := h.orch.HandlePrompt(context.Background(), "Show project 999 and its tasks")

	assert.Equal(t, OutcomeNotFound, resp.Outcome)

	var result executor.Result
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, executor.KindNotFound, result.Kind)

	events := h.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, OutcomeNotFound, events[0].Outcome)
}

func TestHandlePromptUpstreamError(t *testing.T) {
	api := seedAPI()
	api.err = tracker.ErrUpstream
	h := newHarness(api)

	resp := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")

	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.Contains(t, string(resp.Payload), "temporarily unavailable")

	// Failures are logged but never cached
	events := h.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, OutcomeError, events[0].Outcome)

	// Once the tracker recovers, the same prompt executes fresh
	api.mu.Lock()
	api.err = nil
	api.mu.Unlock()

	recovered := h.orch.HandlePrompt(context.Background(), "Show me all overdue tasks assigned to Alice")
	assert.Equal(t, OutcomeSuccess, recovered.Outcome)
	assert.False(t, recovered.Cached)
}

func TestHandlePromptRenderFailure(t *testing.T) {
	h := newHarness(seedAPI())
	h.renderer.fail = true

	resp := h.orch.HandlePrompt(context.Background(), "List everything Alice is working on")

	// The response survives a render failure, annotated and artifact-free
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Empty(t, resp.Artifact)
	assert.NotEmpty(t, resp.ArtifactError)

	events := h.sink.all()
	require.Len(t, events, 1)
}

func TestHandlePromptOneEventPerCall(t *testing.T) {
	h := newHarness(seedAPI())

	prompts := []string{
		"Show me all overdue tasks assigned to Alice",
		"Show me all overdue tasks assigned to Alice", // cache hit
		"asdkjasd random text",                        // fallback
		"Show project 999 and its tasks",              // not found
	}

	for _, p := range prompts {
		h.orch.HandlePrompt(context.Background(), p)
	}

	assert.Len(t, h.sink.all(), len(prompts))
}

func TestHandlePromptCacheBackendFailureDegrades(t *testing.T) {
	// A cache whose Get always errors must not fail the request
	h := newHarness(seedAPI())
	h.orch.cache = failingCache{}

	resp := h.orch.HandlePrompt(context.Background(), "List everything Alice is working on")
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*cache.Entry, bool, error) {
	return nil, false, fmt.Errorf("cache down")
}
func (failingCache) Set(context.Context, string, *cache.Entry) error {
	return fmt.Errorf("cache down")
}
func (failingCache) Close() error { return nil }
