package queue

// Priority is the strict ordering class a job is enqueued under. There
// is no fairness or aging between priorities: high always drains before
// default, and default always drains before low.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

// queueKeys maps a priority to its Redis list key, in strict-drain order.
var queueKeys = map[Priority]string{
	PriorityHigh:    "queue:high",
	PriorityDefault: "queue:default",
	PriorityLow:     "queue:low",
}

// priorityOrder is the order BLPOP polls queues in; earlier entries
// always win over later ones when both have ready work.
var priorityOrder = []Priority{PriorityHigh, PriorityDefault, PriorityLow}

const (
	scheduledZSetKey = "queue:scheduled"
	deadLetterKey    = "queue:deadletter"
	jobKeyPrefix     = "job:"

	recordTTLSeconds = 7 * 24 * 3600
)

func queueKeyFor(p Priority) string {
	if k, ok := queueKeys[p]; ok {
		return k
	}
	return queueKeys[PriorityDefault]
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// queueListKeysInOrder returns the Redis list keys in strict drain
// order, for use as the BLPOP key list.
func queueListKeysInOrder() []string {
	out := make([]string, len(priorityOrder))
	for i, p := range priorityOrder {
		out[i] = queueKeyFor(p)
	}
	return out
}

// priorityForQueueKey reverses queueKeyFor, used when a blocking pop
// returns the queue key it popped from.
func priorityForQueueKey(key string) Priority {
	for p, k := range queueKeys {
		if k == key {
			return p
		}
	}
	return PriorityDefault
}
