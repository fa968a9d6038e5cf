// Package testutil provides an in-memory forum backend for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/msu-forum/client_layer/internal/gateway"
)

// Backend is a scripted forum API served over httptest. Every handler
// records its hit count so tests can assert on traffic.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	questions  []gateway.Question
	tags       []gateway.Tag
	registered map[string]gateway.Session
	authed     *gateway.Session
	hits       map[string]int
	failNext   map[string]int // route -> HTTP status to force
}

// NewBackend starts the fake backend. Callers own Close.
func NewBackend() *Backend {
	b := &Backend{
		registered: make(map[string]gateway.Session),
		hits:       make(map[string]int),
		failNext:   make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", b.handle("health", b.health)).Methods(http.MethodGet)
	r.HandleFunc("/questions", b.handle("questions", b.listQuestions)).Methods(http.MethodGet)
	r.HandleFunc("/questions/search", b.handle("search", b.searchQuestions)).Methods(http.MethodGet)
	r.HandleFunc("/tags", b.handle("tags", b.listTags)).Methods(http.MethodGet)
	r.HandleFunc("/wallet", b.handle("check_wallet", b.checkWallet)).Methods(http.MethodPost)
	r.HandleFunc("/login", b.handle("login", b.login)).Methods(http.MethodPost)
	r.HandleFunc("/register", b.handle("register", b.register)).Methods(http.MethodPost)
	r.HandleFunc("/logout", b.handle("logout", b.logout)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/check-auth", b.handle("check_auth", b.checkAuth)).Methods(http.MethodGet)

	b.Server = httptest.NewServer(r)
	return b
}

// Close shuts the server down.
func (b *Backend) Close() { b.Server.Close() }

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.Server.URL }

// SetQuestions seeds the question listing.
func (b *Backend) SetQuestions(qs []gateway.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions = qs
}

// SetTags seeds the tag listing.
func (b *Backend) SetTags(ts []gateway.Tag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tags = ts
}

// RegisterWallet marks a wallet as already registered, returning sess on
// login.
func (b *Backend) RegisterWallet(wallet string, sess gateway.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered[strings.ToLower(wallet)] = sess
}

// SetAuthed scripts the check-auth response. Nil means 401.
func (b *Backend) SetAuthed(sess *gateway.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authed = sess
}

// FailNext makes the next n requests to route answer with status. Routes are
// named by their registration keys: "health", "questions", "search", "tags",
// "check_wallet", "login", "register", "logout", "check_auth".
func (b *Backend) FailNext(route string, status, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[route] = status
	b.hits[route+"_fail_left"] = n
}

// Hits returns how many times a route was called, under the same route names
// FailNext accepts.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *Backend) handle(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[route]++
		status, failing := b.failNext[route], false
		if left := b.hits[route+"_fail_left"]; status != 0 && left > 0 {
			b.hits[route+"_fail_left"] = left - 1
			failing = true
			if left == 1 {
				delete(b.failNext, route)
			}
		}
		b.mu.Unlock()

		if failing {
			w.WriteHeader(status)
			return
		}
		fn(w, r)
	}
}

func (b *Backend) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) listQuestions(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	qs := append([]gateway.Question(nil), b.questions...)
	b.mu.Unlock()
	writeJSON(w, qs)
}

func (b *Backend) searchQuestions(w http.ResponseWriter, r *http.Request) {
	needle := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	var out []gateway.Question
	for _, q := range b.questions {
		if strings.Contains(strings.ToLower(q.Title+q.Body), needle) {
			out = append(out, q)
		}
	}
	b.mu.Unlock()
	if out == nil {
		out = []gateway.Question{}
	}
	writeJSON(w, out)
}

func (b *Backend) listTags(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	ts := append([]gateway.Tag(nil), b.tags...)
	b.mu.Unlock()
	writeJSON(w, ts)
}

func (b *Backend) checkWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	_, exists := b.registered[strings.ToLower(body.Wallet)]
	b.mu.Unlock()
	writeJSON(w, gateway.WalletStatus{Exists: exists})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	sess, ok := b.registered[strings.ToLower(body.Wallet)]
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, sess)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sess := gateway.Session{
		User: gateway.UserInfo{ID: 1, Username: "new_user", Wallet: body.Wallet, IsActive: true},
	}
	b.mu.Lock()
	b.registered[strings.ToLower(body.Wallet)] = sess
	b.mu.Unlock()
	writeJSON(w, sess)
}

func (b *Backend) logout(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.authed = nil
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) checkAuth(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	sess := b.authed
	b.mu.Unlock()
	if sess == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, sess)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
