// Package ws implements the Session Router: the WS hub that demultiplexes
// client frames into typed handlers and fans out job, dream, and system
// events back to the sessions that care about them.
package ws

import (
	"encoding/json"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

// inboundEnvelope is the superset shape of every recognized inbound frame.
// Only the fields relevant to a given type are populated by the client;
// handlers pick out what they need.
type inboundEnvelope struct {
	Type          string          `json:"type"`
	ID            string          `json:"id,omitempty"`
	JobID         string          `json:"jobId,omitempty"`
	JobType       string          `json:"jobType,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	InitImageRef  string          `json:"initImageRef,omitempty"`
	Priority      string          `json:"priority,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	DurationHours float64         `json:"durationHours,omitempty"`
	// Temperature is a pointer so dream:guide can distinguish "steer to 0"
	// from "field omitted" — a zero-value float can't make that distinction.
	Temperature *float64 `json:"temperature,omitempty"`
	IntervalMs  int      `json:"intervalMs,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	DataBase64  string   `json:"data,omitempty"`
}

// outputDescriptor is a single entry of job:complete's outputs array.
type outputDescriptor struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func ackMsg(id, jobID string) map[string]interface{} {
	return map[string]interface{}{"type": "job:ack", "id": id, "jobId": jobID}
}

func progressMsg(jobID string, ev jobcore.ProgressEvent) map[string]interface{} {
	return map[string]interface{}{
		"type":   "job:progress",
		"jobId":  jobID,
		"status": ev.Status,
		"progress": map[string]interface{}{
			"fraction": ev.Fraction,
		},
	}
}

func completeMsg(jobID, key, url string, meta map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":    "job:complete",
		"jobId":   jobID,
		"outputs": []outputDescriptor{{Key: key, URL: url}},
		"meta":    meta,
	}
}

func cancelMsg(jobID string) map[string]interface{} {
	return map[string]interface{}{"type": "job:cancel", "jobId": jobID}
}

func errorMsg(id, jobID string, kind, message string) map[string]interface{} {
	out := map[string]interface{}{"type": "job:error", "kind": kind, "error": message}
	if id != "" {
		out["id"] = id
	}
	if jobID != "" {
		out["jobId"] = jobID
	}
	return out
}

func dreamStartedMsg(sessionID string) map[string]interface{} {
	return map[string]interface{}{"type": "dream:started", "sessionId": sessionID}
}

func dreamStoppedMsg(stats interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "dream:stopped", "stats": stats}
}

func dreamStatusMsg(state string, owner string) map[string]interface{} {
	return map[string]interface{}{"type": "dream:status", "state": state, "owner": owner}
}

func dreamTopMsg() map[string]interface{} {
	// dream:candidate discovery is deferred; the top-candidates list is
	// always empty until a discovery subsystem publishes into it.
	return map[string]interface{}{"type": "dream:top", "candidates": []interface{}{}}
}

func storagePutAckMsg(id, ref string) map[string]interface{} {
	return map[string]interface{}{"type": "storage:put", "id": id, "fileRef": ref}
}
