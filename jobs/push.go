package jobs

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// PubSubPushHandler accepts push-style delivery of job envelopes. Pull
// subscriptions stay the primary transport; push exists so a Cloud Run
// deployment without a long-lived worker can still drain the queue.
//
// Responses are always 204: Pub/Sub interprets anything else as a retry
// request, and the worker's own attempt counter decides whether to give up.
func PubSubPushHandler(w *Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_ROYALTY_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var env Envelope
		if err := json.Unmarshal(envelope.Message.Data, &env); err != nil {
			c.Status(204)
			return
		}
		if env.JobId == "" || env.Kind == "" {
			c.Status(204)
			return
		}

		_ = w.Dispatch(c.Request.Context(), env)
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
