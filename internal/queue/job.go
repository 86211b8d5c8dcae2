package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Job is a single unit of work. It round-trips through the store as a
// Redis hash (see ToHashFields/JobFromHash) so every field here has to
// survive a string-keyed, string-valued encoding.
type Job struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	Status     Status                 `json:"status"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
	BackoffSec float64                `json:"backoff_sec"`
	NextRunAt  *float64               `json:"next_run_at"`
	Result     interface{}            `json:"result"`
	Error      *string                `json:"error"`
	Priority   Priority               `json:"priority"`
	CreatedAt  float64                `json:"created_at"`
	UpdatedAt  float64                `json:"updated_at"`
}

// NewJob builds a job with the defaults the control plane applies to a
// fresh enqueue request.
func NewJob(id, jobType string, payload map[string]interface{}, maxRetries int, backoffSec float64, priority Priority) *Job {
	now := unixNow()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Job{
		ID:         id,
		Type:       jobType,
		Payload:    payload,
		Status:     StatusQueued,
		Attempts:   0,
		MaxRetries: maxRetries,
		BackoffSec: backoffSec,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// encodeValue mirrors the original store's _encode_value: nil becomes
// the literal JSON "null", maps/slices are JSON-encoded, and everything
// else is written through to its string form.
func encodeValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return "null"
		}
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// ToHashFields serializes the job into the flat string map a hash-typed
// store entry needs, stamping UpdatedAt to now the way save_job does.
func (j *Job) ToHashFields() map[string]string {
	j.UpdatedAt = unixNow()

	payloadJSON, _ := json.Marshal(j.Payload)
	resultStr := encodeValue(j.Result)

	errStr := "null"
	if j.Error != nil {
		errStr = *j.Error
	}

	nextRunStr := "null"
	if j.NextRunAt != nil {
		nextRunStr = strconv.FormatFloat(*j.NextRunAt, 'f', -1, 64)
	}

	return map[string]string{
		"id":          j.ID,
		"type":        j.Type,
		"payload":     string(payloadJSON),
		"status":      string(j.Status),
		"attempts":    strconv.Itoa(j.Attempts),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"backoff_sec": strconv.FormatFloat(j.BackoffSec, 'f', -1, 64),
		"next_run_at": nextRunStr,
		"result":      resultStr,
		"error":       errStr,
		"priority":    string(j.Priority),
		"created_at":  strconv.FormatFloat(j.CreatedAt, 'f', -1, 64),
		"updated_at":  strconv.FormatFloat(j.UpdatedAt, 'f', -1, 64),
	}
}

// JobFromHash parses a hash-typed store entry back into a Job, the
// inverse of ToHashFields. Returns false if the hash was empty (the
// record doesn't exist), mirroring load_job's None return.
func JobFromHash(fields map[string]string) (*Job, bool) {
	if len(fields) == 0 {
		return nil, false
	}

	j := &Job{
		ID:         fields["id"],
		Type:       fields["type"],
		Status:     Status(orDefault(fields["status"], string(StatusQueued))),
		Priority:   Priority(orDefault(fields["priority"], string(PriorityDefault))),
		Attempts:   atoiOrZero(fields["attempts"]),
		MaxRetries: atoiOrDefault(fields["max_retries"], 3),
		BackoffSec: atofOrDefault(fields["backoff_sec"], 1.5),
		CreatedAt:  atofOrDefault(fields["created_at"], unixNow()),
		UpdatedAt:  atofOrDefault(fields["updated_at"], unixNow()),
	}

	j.Payload = map[string]interface{}{}
	if raw, ok := fields["payload"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &j.Payload)
	}

	if raw, ok := fields["next_run_at"]; ok && raw != "" && raw != "null" && raw != "None" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			j.NextRunAt = &f
		}
	}

	if raw, ok := fields["error"]; ok && raw != "" && raw != "null" {
		e := unquoteJSONString(raw)
		j.Error = &e
	}

	if raw, ok := fields["result"]; ok && raw != "" && raw != "null" {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			j.Result = v
		} else {
			j.Result = raw
		}
	}

	return j, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atofOrDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// unquoteJSONString handles error strings that were stored either as a
// raw string or as a JSON-quoted string, matching encodeValue's string
// passthrough branch.
func unquoteJSONString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}
