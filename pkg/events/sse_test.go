package events

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSERequiresProject(t *testing.T) {
	rec := httptest.NewRecorder()
	SSEHandler(NewHub(10), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	SSEHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?project=a", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSSERejectsUnknownProject(t *testing.T) {
	hub := NewHub(10)
	known := func(project string) bool { return project == "alpha" }

	for _, name := range []string{"ghost", "../etc", "x1", "x2"} {
		rec := httptest.NewRecorder()
		SSEHandler(hub, known).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?project="+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.projects, "rejected subscriptions must not allocate streams")
}

func TestSSEStreamsReplayAndLiveEvents(t *testing.T) {
	hub := NewHub(10)
	hub.Publish("alpha", ProjectEvent{Type: TypeFileCreated, Path: "old.txt"})
	hub.Publish("alpha", ProjectEvent{Type: TypeFileUpdated, Path: "seen.txt"})

	srv := httptest.NewServer(SSEHandler(hub, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"?project=alpha", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan ProjectEvent, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var evt ProjectEvent
				if json.Unmarshal([]byte(data), &evt) == nil {
					frames <- evt
				}
			}
		}
		close(frames)
	}()

	next := func() ProjectEvent {
		select {
		case e := <-frames:
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("no SSE frame")
		}
		return ProjectEvent{}
	}

	replayed := next()
	assert.Equal(t, int64(2), replayed.ID)
	assert.Equal(t, "seen.txt", replayed.Path)

	hub.Publish("alpha", ProjectEvent{Type: TypeGitCommitted, Commit: "deadbeef"})
	live := next()
	assert.Equal(t, int64(3), live.ID)
	assert.Equal(t, "deadbeef", live.Commit)
}
