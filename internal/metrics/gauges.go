package metrics

import "fmt"

// RenderSupplementalGauges appends the point-in-time queue-depth gauges
// and a build-info gauge to the counter/histogram exposition Render
// produces. These aren't persisted in the store — they reflect current
// state at scrape time — but callers of /metrics expect to find them
// alongside the durable counters.
func RenderSupplementalGauges(queueSize, scheduled, deadLetter int64, version string) string {
	return fmt.Sprintf(
		"# TYPE queue_size gauge\nqueue_size %d\n"+
			"# TYPE queue_scheduled gauge\nqueue_scheduled %d\n"+
			"# TYPE queue_deadletter gauge\nqueue_deadletter %d\n"+
			"# TYPE job_queue_build_info gauge\njob_queue_build_info{version=\"%s\"} 1\n",
		queueSize, scheduled, deadLetter, version,
	)
}
