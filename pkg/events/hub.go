// Package events fans out change notifications about projects under the
// work directory to Server-Sent Events subscribers.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeFileCreated    = "file.created"
	TypeFileUpdated    = "file.updated"
	TypeFileDeleted    = "file.deleted"
	TypeDirCreated     = "dir.created"
	TypeDirDeleted     = "dir.deleted"
	TypeProjectCreated = "project.created"
	TypeProjectCloned  = "project.cloned"
	TypeGitCommitted   = "git.committed"
)

// Actor kinds.
const (
	ActorMCP     = "mcp"
	ActorAPI     = "api"
	ActorFSWatch = "fswatch"
)

// ProjectEvent is a change notification for one project.
type ProjectEvent struct {
	ID      int64  `json:"id"` // increasing per project
	TS      string `json:"ts"` // RFC3339
	Project string `json:"project"`
	Type    string `json:"type"`
	// Path is relative to the project directory; empty for project-wide events.
	Path    string `json:"path,omitempty"`
	IsDir   bool   `json:"isDir"`
	Actor   string `json:"actor,omitempty"`
	Session string `json:"session,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type projectStream struct {
	seq     int64
	ring    []ProjectEvent // oldest first once wrapped at head
	head    int
	subs    map[int]chan ProjectEvent
	nextSub int
}

// Hub keeps a bounded history per project and delivers new events to
// subscribers without ever blocking the publisher.
type Hub struct {
	mu       sync.Mutex
	projects map[string]*projectStream
	capacity int
	closed   bool
}

// NewHub creates a hub that remembers the last ringCapacity events of each
// project for replay.
func NewHub(ringCapacity int) *Hub {
	if ringCapacity <= 0 {
		ringCapacity = 200
	}
	return &Hub{projects: make(map[string]*projectStream), capacity: ringCapacity}
}

func (h *Hub) streamLocked(project string) *projectStream {
	st, ok := h.projects[project]
	if !ok {
		st = &projectStream{
			ring:    make([]ProjectEvent, 0, h.capacity),
			subs:    make(map[int]chan ProjectEvent),
			nextSub: 1,
		}
		h.projects[project] = st
	}
	return st
}

// Publish stamps evt with the next id and the current time (unless set),
// records it and fans it out. Slow subscribers lose their oldest
// undelivered event.
func (h *Hub) Publish(project string, evt ProjectEvent) {
	if evt.TS == "" {
		evt.TS = time.Now().UTC().Format(time.RFC3339)
	}
	evt.Project = project

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	st := h.streamLocked(project)
	st.seq++
	evt.ID = st.seq
	if len(st.ring) < h.capacity {
		st.ring = append(st.ring, evt)
	} else {
		st.ring[st.head] = evt
		st.head = (st.head + 1) % h.capacity
	}
	subs := make([]chan ProjectEvent, 0, len(st.subs))
	for _, ch := range st.subs {
		subs = append(subs, ch)
	}

	// Sends happen under the lock so an unsubscribe cannot close a channel
	// mid-send; every send is non-blocking.
	for _, ch := range subs {
		select {
		case ch <- evt:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- evt:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel of the project's events with id > sinceID,
// starting with buffered history, and a function that ends the
// subscription.
func (h *Hub) Subscribe(project string, sinceID int64, buffer int) (<-chan ProjectEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	replay := []ProjectEvent{}
	if !h.closed {
		replay = h.streamLocked(project).since(sinceID)
	}
	if len(replay) > buffer {
		replay = replay[len(replay)-buffer:]
	}
	ch := make(chan ProjectEvent, buffer+len(replay))
	for _, e := range replay {
		ch <- e
	}
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	st := h.projects[project]
	id := st.nextSub
	st.nextSub++
	st.subs[id] = ch

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := st.subs[id]; ok {
				delete(st.subs, id)
				close(c)
			}
		})
	}
	return ch, unsub
}

func (st *projectStream) since(id int64) []ProjectEvent {
	out := make([]ProjectEvent, 0, len(st.ring))
	for i := 0; i < len(st.ring); i++ {
		e := st.ring[(st.head+i)%len(st.ring)]
		if e.ID > id {
			out = append(out, e)
		}
	}
	return out
}

// Close ends every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, st := range h.projects {
		for id, ch := range st.subs {
			close(ch)
			delete(st.subs, id)
		}
	}
}
