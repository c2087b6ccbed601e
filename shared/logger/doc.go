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

/*
Package logger provides structured JSON logging for tasknav components.

# Overview

The logger package outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (server, orchestrator, telemetry, etc.)
  - Host name (for distributed tracing)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("orchestrator")

Log messages with request context:

	log.Info("req-456", "Processing prompt", map[string]interface{}{
	    "capability": "fetch_overdue_tasks",
	    "cache_hit":  false,
	})

Log errors with the underlying cause attached:

	log.ErrorWithErr("req-456", "Tracker request failed", err, map[string]interface{}{
	    "endpoint": "/tasks",
	})

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("req-456", "Request completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"orchestrator","host":"tasknav-xyz","request_id":"req-456",
	 "message":"Processing prompt","fields":{"capability":"fetch_overdue_tasks"}}

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
