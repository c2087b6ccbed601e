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

// Package orchestrator wires the prompt pipeline together: normalize, probe
// the cache, route, execute, redact, render, cache, and record telemetry.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"tasknav/cache"
	"tasknav/executor"
	"tasknav/pii"
	"tasknav/router"
	"tasknav/shared/logger"
	"tasknav/telemetry"
	"tasknav/tracker"
)

var promRedactionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasknav_redactions_total",
		Help: "Total number of responses that contained PII, by PII type",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(promRedactionsTotal)
}

// Request outcomes recorded in telemetry and mapped to HTTP statuses by the
// transport layer.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// UnavailableMessage is returned when the tracker cannot be reached
const UnavailableMessage = "The project tracker is temporarily unavailable. Please retry."

// Response is the full answer to one prompt. Payload carries the redacted
// result and, for identical normalized prompts inside the cache TTL, is
// byte-identical across responses.
type Response struct {
	RequestID     string          `json:"request_id"`
	Outcome       string          `json:"outcome"`
	Cached        bool            `json:"cached"`
	Payload       json.RawMessage `json:"payload"`
	Artifact      string          `json:"artifact,omitempty"`
	ArtifactError string          `json:"artifact_error,omitempty"`
}

// CapabilityExecutor runs a routed capability
type CapabilityExecutor interface {
	Execute(ctx context.Context, requestID string, match router.MatchResult) (*executor.Result, error)
}

// DocumentRenderer produces an artifact reference for a result
type DocumentRenderer interface {
	Render(ctx context.Context, result *executor.Result) (string, error)
}

// EventRecorder accepts telemetry events
type EventRecorder interface {
	Record(event telemetry.Event)
}

// Redactor scrubs PII from a single text field and reports which PII
// categories a text contains
type Redactor interface {
	Redact(text string) string
	Detect(text string) []pii.PIIType
}

// Orchestrator owns the per-request pipeline. All collaborators are
// injected; the orchestrator itself holds no request state between calls.
type Orchestrator struct {
	router   *router.Router
	executor CapabilityExecutor
	redactor Redactor
	cache    cache.Store
	sink     EventRecorder
	renderer DocumentRenderer
	log      *logger.Logger
}

// New creates an Orchestrator from its collaborators
func New(r *router.Router, exec CapabilityExecutor, redactor Redactor, store cache.Store, sink EventRecorder, renderer DocumentRenderer) *Orchestrator {
	return &Orchestrator{
		router:   r,
		executor: exec,
		redactor: redactor,
		cache:    store,
		sink:     sink,
		renderer: renderer,
		log:      logger.New("orchestrator"),
	}
}

// HandlePrompt is the single public operation of the core. It always
// produces exactly one telemetry event, and it only returns an error
// struct inside the Response, never a Go error: every failure mode maps to
// an outcome the transport layer can render.
func (o *Orchestrator) HandlePrompt(ctx context.Context, rawText string) *Response {
	requestID := uuid.NewString()
	start := time.Now()

	prompt := router.NewPrompt(rawText)
	key := prompt.Normalized

	// Cache probe. Backend errors degrade to a miss; the cache is an
	// optimization, not a dependency.
	if entry, hit, err := o.cache.Get(ctx, key); err != nil {
		o.log.Warn(requestID, "Cache probe failed, treating as miss", map[string]interface{}{
			"error": err.Error(),
		})
	} else if hit {
		o.record(telemetry.Event{
			RequestID:  requestID,
			Prompt:     rawText,
			Capability: entry.Capability,
			Output:     json.RawMessage(entry.Payload),
			Outcome:    entry.Outcome,
			CacheHit:   true,
		})
		o.log.InfoWithDuration(requestID, "Served from cache", msSince(start), map[string]interface{}{
			"capability": entry.Capability,
		})
		return &Response{
			RequestID: requestID,
			Outcome:   entry.Outcome,
			Cached:    true,
			Payload:   entry.Payload,
			Artifact:  entry.Artifact,
		}
	}

	match := o.router.Route(prompt)
	o.log.Debug(requestID, "Prompt routed", map[string]interface{}{
		"capability": match.Capability,
		"rationale":  match.Rationale,
	})

	result, err := o.executor.Execute(ctx, requestID, match)
	if err != nil {
		return o.failUpstream(requestID, rawText, match, err, start)
	}

	redacted := result.Redact(o.redactor.Redact)
	o.countRedactions(result)

	payload, err := json.Marshal(redacted)
	if err != nil {
		// Result types are plain structs; marshaling them cannot
		// realistically fail, but a response is still owed.
		return o.failUpstream(requestID, rawText, match, err, start)
	}

	outcome := outcomeFor(redacted.Kind)

	// Render before caching so the artifact reference rides along with the
	// entry and cache hits skip re-rendering entirely.
	artifact, artifactErr := o.renderer.Render(ctx, redacted)
	if artifactErr != nil {
		o.log.ErrorWithErr(requestID, "Document render failed, responding without artifact", artifactErr, nil)
	}

	if err := o.cache.Set(ctx, key, &cache.Entry{
		Payload:    payload,
		Capability: match.Capability,
		Outcome:    outcome,
		Artifact:   artifact,
		StoredAt:   time.Now().UTC(),
	}); err != nil {
		o.log.Warn(requestID, "Cache write failed", map[string]interface{}{"error": err.Error()})
	}

	o.record(telemetry.Event{
		RequestID:  requestID,
		Prompt:     rawText,
		Capability: match.Capability,
		Output:     payload,
		Outcome:    outcome,
	})

	o.log.InfoWithDuration(requestID, "Prompt handled", msSince(start), map[string]interface{}{
		"capability": match.Capability,
		"outcome":    outcome,
	})

	resp := &Response{
		RequestID: requestID,
		Outcome:   outcome,
		Payload:   payload,
		Artifact:  artifact,
	}
	if artifactErr != nil {
		resp.ArtifactError = "document could not be rendered"
	}
	return resp
}

// failUpstream converts an execution failure into a retryable error
// response. The failed attempt is cached never, logged always.
func (o *Orchestrator) failUpstream(requestID, rawText string, match router.MatchResult, cause error, start time.Time) *Response {
	o.log.ErrorWithErr(requestID, "Capability execution failed", cause, map[string]interface{}{
		"capability": match.Capability,
	})

	message := UnavailableMessage
	if !errors.Is(cause, tracker.ErrUpstream) {
		message = "The request could not be completed."
	}
	payload, _ := json.Marshal(map[string]string{
		"kind":    "error",
		"message": message,
	})

	o.record(telemetry.Event{
		RequestID:  requestID,
		Prompt:     rawText,
		Capability: match.Capability,
		Output:     payload,
		Outcome:    OutcomeError,
	})

	o.log.InfoWithDuration(requestID, "Prompt handled", msSince(start), map[string]interface{}{
		"capability": match.Capability,
		"outcome":    OutcomeError,
	})

	return &Response{
		RequestID: requestID,
		Outcome:   OutcomeError,
		Payload:   payload,
	}
}

// countRedactions inspects the unredacted result and bumps the per-type
// redaction counter. Detection runs on the serialized form so every text
// field is covered without walking the result shape here.
func (o *Orchestrator) countRedactions(result *executor.Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	for _, piiType := range o.redactor.Detect(string(raw)) {
		promRedactionsTotal.WithLabelValues(string(piiType)).Inc()
	}
}

func (o *Orchestrator) record(event telemetry.Event) {
	// Record never returns an error; a telemetry failure must never fail
	// the user request.
	o.sink.Record(event)
}

func outcomeFor(kind executor.ResultKind) string {
	switch kind {
	case executor.KindUnsupported:
		return OutcomeFallback
	case executor.KindNotFound:
		return OutcomeNotFound
	default:
		return OutcomeSuccess
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
