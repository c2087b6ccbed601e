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

// Package server is the thin HTTP layer over the orchestrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"tasknav/orchestrator"
	"tasknav/shared/logger"
)

// Prometheus metrics
var (
	promPromptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasknav_prompts_total",
			Help: "Total number of prompts handled, by outcome",
		},
		[]string{"outcome"},
	)
	promPromptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasknav_prompt_duration_milliseconds",
			Help:    "Prompt handling duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		},
		[]string{"cached"},
	)
	promCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasknav_cache_hits_total",
			Help: "Total number of prompts served from cache",
		},
	)
)

func init() {
	prometheus.MustRegister(promPromptsTotal)
	prometheus.MustRegister(promPromptDuration)
	prometheus.MustRegister(promCacheHits)
}

// PromptHandler is the single core operation the server exposes
type PromptHandler interface {
	HandlePrompt(ctx context.Context, rawText string) *orchestrator.Response
}

// Server routes HTTP traffic to the orchestrator
type Server struct {
	orch       PromptHandler
	router     *mux.Router
	cors       *cors.Cors
	authSecret string
	log        *logger.Logger
	startedAt  time.Time
}

// Options configures optional server behavior
type Options struct {
	// AuthSecret enables bearer-token auth on /agent when non-empty
	AuthSecret string
	// AllowedOrigins defaults to "*" when empty
	AllowedOrigins []string
}

// New creates the Server and registers all routes
func New(orch PromptHandler, opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		orch:       orch,
		router:     mux.NewRouter(),
		authSecret: opts.AuthSecret,
		log:        logger.New("server"),
		startedAt:  time.Now(),
		cors: cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}),
	}

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	s.router.Handle("/prometheus", promhttp.Handler()).Methods("GET")
	s.router.Handle("/agent", s.requireAuth(http.HandlerFunc(s.agentHandler))).Methods("POST")

	return s
}

// Handler returns the full middleware-wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// promptRequest is the body of POST /agent
type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) agentHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a prompt field")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resp := s.orch.HandlePrompt(r.Context(), req.Prompt)

	promPromptsTotal.WithLabelValues(resp.Outcome).Inc()
	promPromptDuration.WithLabelValues(fmt.Sprintf("%t", resp.Cached)).
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	if resp.Cached {
		promCacheHits.Inc()
	}

	writeJSON(w, statusFor(resp.Outcome), resp)
}

// statusFor maps pipeline outcomes to HTTP statuses. Fallback responses are
// well-formed answers, not client errors.
func statusFor(outcome string) int {
	switch outcome {
	case orchestrator.OutcomeNotFound:
		return http.StatusNotFound
	case orchestrator.OutcomeError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// metricsHandler serves a small JSON snapshot; full metrics live on
// /prometheus.
func (s *Server) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
