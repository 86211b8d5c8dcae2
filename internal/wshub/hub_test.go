package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
)

func TestHubBroadcastsToConnectedClients(t *testing.T) {
	hub := New(0, nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(queue.JobEvent{Kind: queue.EventSucceeded, JobID: "j1"})

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt queue.JobEvent
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, "j1", evt.JobID)
	assert.Equal(t, queue.EventSucceeded, evt.Kind)
}

func TestHubRejectsConnectionsOverMaxConnections(t *testing.T) {
	hub := New(1, nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBridgeFromStoreRebroadcastsPublishedEvents(t *testing.T) {
	hub := New(0, nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	db := store.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.BridgeFromStore(ctx, db)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 5*time.Millisecond)

	publisher := queue.NewStorePublisher(db)
	require.Eventually(t, func() bool {
		publisher.Publish(queue.JobEvent{Kind: queue.EventDead, JobID: "bridge-1"})
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var evt queue.JobEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			return false
		}
		return evt.JobID == "bridge-1"
	}, 2*time.Second, 50*time.Millisecond)
}
