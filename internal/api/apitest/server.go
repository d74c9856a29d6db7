// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-memory implementation of the remote threads
// service for tests, with hooks to inject failures.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jeranaias/threadchat/internal/model"
)

// Route names, usable with FailNext, DropNext and Count.
const (
	RouteHealth       = "health"
	RouteListThreads  = "listThreads"
	RouteCreateThread = "createThread"
	RouteGetMessages  = "getMessages"
	RouteSendMessage  = "sendMessage"
	RouteUpdateThread = "updateThread"
	RouteDeleteThread = "deleteThread"
)

type failure struct {
	status int
	drop   bool
}

// Server is a fake threads service backed by an httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	threads  map[string]*model.Thread
	down     bool
	latency  time.Duration
	failures map[string][]failure
	counts   map[string]int
	lastSend map[string]any

	// Reply computes the assistant's answer to a user message.
	Reply func(content string) string

	// Now is the server clock.
	Now func() time.Time
}

// NewServer starts a fake service. It is closed automatically when the test
// ends if cleanup is non-nil.
func NewServer(cleanup interface{ Cleanup(func()) }) *Server {
	s := &Server{
		threads:  make(map[string]*model.Thread),
		failures: make(map[string][]failure),
		counts:   make(map[string]int),
		Reply:    func(content string) string { return "Echo: " + content },
		Now:      func() time.Time { return time.Now().UTC() },
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet).Name(RouteHealth)
	r.HandleFunc("/threads", s.listThreads).Methods(http.MethodGet).Name(RouteListThreads)
	r.HandleFunc("/threads", s.createThread).Methods(http.MethodPost).Name(RouteCreateThread)
	r.HandleFunc("/threads/{id}/messages", s.getMessages).Methods(http.MethodGet).Name(RouteGetMessages)
	r.HandleFunc("/threads/{id}/messages", s.sendMessage).Methods(http.MethodPost).Name(RouteSendMessage)
	r.HandleFunc("/threads/{id}", s.updateThread).Methods(http.MethodPut).Name(RouteUpdateThread)
	r.HandleFunc("/threads/{id}", s.deleteThread).Methods(http.MethodDelete).Name(RouteDeleteThread)
	r.Use(s.inject)

	// No keep-alive: a dropped connection must surface as a transport error
	// instead of being retried transparently on a reused connection.
	s.Server = httptest.NewUnstartedServer(r)
	s.Server.Config.SetKeepAlivesEnabled(false)
	s.Server.Start()
	if cleanup != nil {
		cleanup.Cleanup(s.Close)
	}
	return s
}

// =============================================================================
// FAILURE INJECTION
// =============================================================================

// SetDown makes every request fail with 503 until called with false.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailNext makes the next n requests to route answer status with a JSON
// error body.
func (s *Server) FailNext(route string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[route] = append(s.failures[route], failure{status: status})
	}
}

// DropNext makes the next n requests to route fail at the transport level:
// the connection is closed without a response.
func (s *Server) DropNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[route] = append(s.failures[route], failure{drop: true})
	}
}

// Count returns how many requests reached route, including failed ones.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// TotalRequests returns the number of requests across all routes.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// LastMetadata returns the metadata of the most recent send to threadID.
func (s *Server) LastMetadata(threadID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSend == nil {
		return nil
	}
	md, _ := s.lastSend[threadID].(map[string]any)
	return md
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		s.mu.Lock()
		s.counts[name]++
		latency := s.latency
		down := s.down
		var f *failure
		if queue := s.failures[name]; len(queue) > 0 {
			f = &queue[0]
			s.failures[name] = queue[1:]
		}
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}

		switch {
		case f != nil && f.drop:
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			writeError(w, http.StatusBadGateway, "dropped", "connection dropped")
		case f != nil:
			writeError(w, f.status, strings.ToLower(strings.ReplaceAll(http.StatusText(f.status), " ", "_")), "injected failure")
		case down:
			writeError(w, http.StatusServiceUnavailable, "unavailable", "service is down")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// =============================================================================
// STATE
// =============================================================================

// Seed stores t as if it had been created remotely.
func (s *Server) Seed(t model.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := t.Clone()
	c.Normalize()
	s.threads[c.ID] = &c
}

// Thread returns a copy of the stored thread.
func (s *Server) Thread(id string) (model.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return model.Thread{}, false
	}
	return t.Clone(), true
}

// Threads returns copies of all stored threads, most recently updated first.
func (s *Server) Threads() []model.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Server) snapshot() []model.Thread {
	out := make([]model.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t.Clone())
	}
	model.SortByUpdated(out)
	return out
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = model.DefaultTitle
	}

	now := s.Now()
	t := &model.Thread{ID: uuid.NewString(), Title: req.Title, UpdatedAt: now, Messages: []model.Message{}}

	s.mu.Lock()
	s.threads[t.ID] = t
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": t.ID, "title": t.Title, "createdAt": now})
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	t, ok := s.threads[id]
	var msgs []model.Message
	if ok {
		msgs = model.CloneMessages(t.Messages)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "content is required")
		return
	}

	s.mu.Lock()
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	if s.lastSend == nil {
		s.lastSend = make(map[string]any)
	}
	s.lastSend[id] = req.Metadata

	now := s.Now()
	user := model.Message{ID: uuid.NewString(), Role: model.RoleUser, Content: req.Content, CreatedAt: now, Files: []model.Attachment{}}
	reply := model.Message{ID: uuid.NewString(), Role: model.RoleAssistant, Content: s.Reply(req.Content), CreatedAt: now.Add(time.Millisecond), Files: []model.Attachment{}}
	t.Messages = append(t.Messages, user, reply)
	t.Touch(reply.CreatedAt)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":            id,
		"user_message_id":      user.ID,
		"assistant_message_id": reply.ID,
		"assistant": map[string]any{
			"content": reply.Content,
			"model":   "fake-1",
			"usage":   map[string]int{"prompt_tokens": len(req.Content), "completion_tokens": len(reply.Content), "total_tokens": len(req.Content) + len(reply.Content)},
		},
	})
}

func (s *Server) updateThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	s.mu.Lock()
	t, ok := s.threads[id]
	var updated time.Time
	if ok {
		t.Apply(model.TitleUpdate(req.Title), s.Now())
		updated = t.UpdatedAt
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "thread_id": id, "updated_at": updated})
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, ok := s.threads[id]
	delete(s.threads, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "thread_id": id, "deleted_at": s.Now()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": code, "message": message, "status_code": status})
}
