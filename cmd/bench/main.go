// Command bench drives synthetic load against a running control plane
// over HTTP, mirroring the original benchmark script: enqueue N jobs at
// a configured concurrency, then poll each until terminal and report
// throughput.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type enqueueRequest struct {
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	Priority   string                 `json:"priority"`
	DelaySec   float64                `json:"delay_sec"`
	MaxRetries int                    `json:"max_retries"`
	BackoffSec float64                `json:"backoff_sec"`
}

type enqueueResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type jobStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func main() {
	api := flag.String("api", "http://localhost:8080", "control plane base URL")
	jobs := flag.Int("jobs", 200, "number of jobs to enqueue")
	concurrency := flag.Int("concurrency", 50, "max in-flight requests")
	secondsPerJob := flag.Float64("seconds-per-job", 0.05, "seconds each sleep job takes")
	priority := flag.String("priority", "default", "job priority: high, default, or low")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Printf("Benchmark: jobs=%d concurrency=%d seconds_per_job=%.3f priority=%s\n", *jobs, *concurrency, *secondsPerJob, *priority)
	fmt.Println("Enqueuing jobs...")

	sem := make(chan struct{}, *concurrency)
	ids := make([]string, *jobs)
	var wg sync.WaitGroup

	t0 := time.Now()
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			id, err := enqueueJob(client, *api, *secondsPerJob, *priority)
			if err != nil {
				fmt.Printf("enqueue error: %v\n", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()
	enqueueElapsed := time.Since(t0)
	fmt.Printf("Enqueued %d jobs in %.3fs (%.1f jobs/sec)\n", *jobs, enqueueElapsed.Seconds(), float64(*jobs)/enqueueElapsed.Seconds())

	fmt.Println("Waiting for completion...")
	t2 := time.Now()
	statuses := make([]string, *jobs)
	var wg2 sync.WaitGroup
	for i, id := range ids {
		if id == "" {
			continue
		}
		wg2.Add(1)
		go func(i int, id string) {
			defer wg2.Done()
			statuses[i] = pollUntilDone(client, *api, id)
		}(i, id)
	}
	wg2.Wait()
	completeElapsed := time.Since(t2)
	totalElapsed := time.Since(t0)

	succeeded := 0
	for _, s := range statuses {
		if s == "succeeded" {
			succeeded++
		}
	}

	fmt.Println()
	fmt.Println("Results")
	fmt.Println("-------")
	fmt.Printf("Total wall time           : %.3fs\n", totalElapsed.Seconds())
	fmt.Printf("Completion wait time      : %.3fs\n", completeElapsed.Seconds())
	fmt.Printf("Throughput (completed)    : %.1f jobs/sec\n", float64(*jobs)/totalElapsed.Seconds())
	fmt.Printf("Succeeded / Failed        : %d / %d\n", succeeded, *jobs-succeeded)
}

func enqueueJob(client *http.Client, api string, seconds float64, priority string) (string, error) {
	body, err := json.Marshal(enqueueRequest{
		Type:       "sleep",
		Payload:    map[string]interface{}{"seconds": seconds},
		Priority:   priority,
		MaxRetries: 3,
		BackoffSec: 1.5,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(api+"/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("enqueue: unexpected status %d", resp.StatusCode)
	}

	var out enqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func pollUntilDone(client *http.Client, api, jobID string) string {
	for {
		resp, err := client.Get(api + "/jobs/" + jobID)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			time.Sleep(50 * time.Millisecond)
			continue
		}

		var out jobStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		switch out.Status {
		case "succeeded", "dead", "failed":
			return out.Status
		}
		time.Sleep(50 * time.Millisecond)
	}
}
