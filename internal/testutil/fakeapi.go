// Package testutil provides an in-memory fake of the parking API for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Prefix is the REST prefix served by FakeAPI.
const Prefix = "/api/v1.0"

// User is a fake account.
type User struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Surname   string   `json:"surname"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone"`
	Role      []string `json:"role"`
	Status    string   `json:"status"`
	PhotoPath string   `json:"photo_path"`
	Created   string   `json:"datetime_create"`
	Balance   float64  `json:"balance"`
}

// Car is a fake car.
type Car struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Parking is a fake parking listing.
type Parking struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"-"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Photo       string   `json:"photo"`
	Date        string   `json:"date"`
	Price       float64  `json:"price"`
	Address     string   `json:"address"`
	IsActive    bool     `json:"isActive"`
	FromDate    string   `json:"from_date"`
	ToDate      string   `json:"to_date"`
	Quantity    int      `json:"quantity"`
	Photos      []string `json:"photos"`
	Services    []int64  `json:"services"`
}

// Reply is a canned response used for failure injection.
type Reply struct {
	Status int
	Body   string
}

// FakeAPI serves the REST and websocket endpoints the client consumes.
// Route keys used by Hits, Fail and Hold have the form "METHOD /path" with the
// path below Prefix, e.g. "POST /admins/get_users".
type FakeAPI struct {
	Server *httptest.Server

	// Credentials accepted by /auth/login.
	Login    string
	Password string

	mu        sync.Mutex
	me        User
	users     []User
	cars      []Car
	parkings  []Parking
	tokens    map[string]bool
	issued    int
	hits      map[string]int
	failures  map[string][]Reply
	holds     map[string]chan struct{}
	bodies    map[string][]byte
	upgrader  websocket.Upgrader
	sockets   []*websocket.Conn
	closeOnce sync.Once
}

// NewFakeAPI starts a fake server with one admin account and a few users.
// The server is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	f := &FakeAPI{
		Login:    "admin",
		Password: "secret",
		me: User{
			ID: 1, Name: "Anna", Surname: "Petrova", Email: "anna@uparkt.ru",
			Role: []string{"admin"}, Status: "active", Created: "01.02.2023",
		},
		users: []User{
			{ID: 10, Name: "Ivan", Surname: "Ivanov", Phone: "+79990000010", Role: []string{"user"}, Status: "active", Created: "05.03.2024", Balance: 1500},
			{ID: 11, Name: "Oleg", Surname: "Sidorov", Phone: "+79990000011", Role: []string{"user"}, Status: "active", Created: "6.3.2024"},
			{ID: 12, Name: "Maria", Surname: "Orlova", Phone: "+79990000012", Role: []string{"user"}, Status: "banned", Created: "07.03.2024"},
		},
		cars: []Car{
			{ID: 100, UserID: 10, Name: "Lada Vesta", Number: "A123BC77"},
			{ID: 101, UserID: 10, Name: "Kia Rio", Number: "B456CD77"},
		},
		parkings: []Parking{
			{ID: 200, UserID: 10, Name: "Garage", Description: "Covered", Photo: "/files/p1.png", Date: "05.03.2024",
				Price: 300, Address: "Lenina 1", IsActive: true, FromDate: "01.03.2024", ToDate: "31.03.2024",
				Quantity: 2, Photos: []string{"/files/p1.png"}, Services: []int64{1}},
		},
		tokens:   make(map[string]bool),
		hits:     make(map[string]int),
		failures: make(map[string][]Reply),
		holds:    make(map[string]chan struct{}),
		bodies:   make(map[string][]byte),
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Close)
	return f
}

// URL returns the origin of the fake server.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// Close stops the server and drops open websockets.
func (f *FakeAPI) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		for _, c := range f.sockets {
			c.Close()
		}
		for k, ch := range f.holds {
			close(ch)
			delete(f.holds, k)
		}
		f.mu.Unlock()
		f.Server.Close()
	})
}

// IssueToken creates a valid access token without a login call.
func (f *FakeAPI) IssueToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked()
}

func (f *FakeAPI) issueLocked() string {
	f.issued++
	tok := "tok-" + strconv.Itoa(f.issued)
	f.tokens[tok] = true
	return tok
}

// Revoke invalidates every issued token.
func (f *FakeAPI) Revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]bool)
}

// SetRoles replaces the roles of the admin account.
func (f *FakeAPI) SetRoles(roles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.me.Role = roles
}

// Hits returns how many times route was requested.
func (f *FakeAPI) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// LastBody returns the last request body received on route.
func (f *FakeAPI) LastBody(route string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[route]
}

// Fail queues canned replies for route. Each request consumes one.
func (f *FakeAPI) Fail(route string, replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], replies...)
}

// Hold blocks requests on route until the returned release func is called.
func (f *FakeAPI) Hold(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[route] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[route] == ch {
				delete(f.holds, route)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
}

func (f *FakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Route(Prefix, func(r chi.Router) {
		r.Use(f.track)

		r.Post("/auth/login", f.login)
		r.Get("/static_data/service", f.services)
		r.Get("/chats/{token}", f.chatSocket)

		r.Group(func(r chi.Router) {
			r.Use(f.requireAuth)

			r.Post("/auth/logout", f.ok)
			r.Post("/auth/reload_access", f.reload)
			r.Get("/users/get_me", f.getMe)
			r.Put("/users/update_me", f.ok)
			r.Post("/users/money", f.money)

			r.Post("/admins/get_users", f.getUsers)
			r.Post("/admins/ban_user", f.banUser)
			r.Post("/admins/delete_user", f.deleteUser)

			r.Post("/orders/cars", f.getCars)
			r.Get("/orders/car/{id}", f.getCar)
			r.Put("/orders/car", f.ok)
			r.Delete("/orders/car/{id}", f.deleteCar)

			r.Get("/orders/parking", f.getParkings)
			r.Get("/orders/parking/{id}", f.getParking)
			r.Put("/orders/parking", f.ok)
			r.Delete("/orders/parking/{id}", f.deleteParking)

			r.Post("/chats/get_chats", f.getChats)
			r.Post("/chats/get_chat", f.getChat)
			r.Post("/chats/get_messages", f.getMessages)

			r.Post("/files/upload_files", f.upload)
		})
	})
	return r
}

func routeKey(r *http.Request) string {
	return r.Method + " " + strings.TrimPrefix(r.URL.Path, Prefix)
}

func (f *FakeAPI) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.hits[key]++
		f.bodies[key] = body
		hold := f.holds[key]
		var reply *Reply
		if q := f.failures[key]; len(q) > 0 {
			reply = &q[0]
			f.failures[key] = q[1:]
		}
		f.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if reply != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(reply.Status)
			io.WriteString(w, reply.Body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.tokens[tok]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": false, "message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request) map[string]any {
	m := map[string]any{}
	json.NewDecoder(r.Body).Decode(&m)
	return m
}

func num(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func page[T any](items []T, offset, limit int64) []T {
	if offset > int64(len(items)) {
		return []T{}
	}
	end := int64(len(items))
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// HashPassword mirrors the digest the client sends.
func HashPassword(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

func (f *FakeAPI) ok(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok"})
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	if in["login"] != f.Login || in["password"] != HashPassword(f.Password) {
		writeJSON(w, http.StatusOK, map[string]any{"status": false, "message": "wrong login or password"})
		return
	}
	f.mu.Lock()
	tok := f.issueLocked()
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok", "token": tok})
}

func (f *FakeAPI) reload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	tok := f.issueLocked()
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok", "token": tok})
}

func (f *FakeAPI) getMe(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id := r.URL.Query().Get("id_user"); id != "" {
		for _, u := range f.users {
			if strconv.FormatInt(u.ID, 10) == id {
				writeJSON(w, http.StatusOK, u)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": false, "message": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true, "id": f.me.ID, "name": f.me.Name, "surname": f.me.Surname,
		"email": f.me.Email, "role": f.me.Role, "reg_date": "2023-02-01T10:00:00", "token": "chat-1",
	})
}

func (f *FakeAPI) money(w http.ResponseWriter, r *http.Request) {
	id := num(readJSON(r), "id_user")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{
				"status": true, "balance": u.Balance,
				"history": []map[string]any{{"title": "Top up", "description": "card", "amount": u.Balance}},
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": false, "message": "user not found"})
}

func (f *FakeAPI) getUsers(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	search, _ := in["search"].(string)
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []User
	for _, u := range f.users {
		if search == "" || strings.Contains(strings.ToLower(u.Name+" "+u.Surname), strings.ToLower(search)) {
			matched = append(matched, u)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true, "message": "ok", "total": len(matched),
		"users": page(matched, num(in, "offset"), num(in, "limit")),
	})
}

func (f *FakeAPI) banUser(w http.ResponseWriter, r *http.Request) {
	id := num(readJSON(r), "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Status = "banned"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok"})
}

func (f *FakeAPI) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := num(readJSON(r), "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.users[:0]
	for _, u := range f.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	f.users = kept
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok"})
}

func (f *FakeAPI) getCars(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	id := num(in, "id_user")
	f.mu.Lock()
	defer f.mu.Unlock()
	var cars []Car
	for _, c := range f.cars {
		if c.UserID == id {
			cars = append(cars, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true, "total": len(cars), "cars": page(cars, num(in, "offset"), num(in, "limit")),
	})
}

func (f *FakeAPI) getCar(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cars {
		if c.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "car": c})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"status": false, "message": "car not found"})
}

func (f *FakeAPI) deleteCar(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.cars[:0]
	for _, c := range f.cars {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.cars = kept
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok"})
}

func (f *FakeAPI) getParkings(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.URL.Query().Get("id_user"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	parkings := []Parking{}
	for _, p := range f.parkings {
		if p.UserID == id {
			parkings = append(parkings, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "parkings": parkings})
}

func (f *FakeAPI) getParking(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.parkings {
		if p.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "parking": map[string]any{
				"id": p.ID, "name": p.Name, "description": p.Description, "price": p.Price,
				"address":   map[string]any{"address": p.Address, "latitude": 55.75, "longitude": 37.61},
				"from_date": p.FromDate, "to_date": p.ToDate, "quantity": p.Quantity,
				"photos": p.Photos, "services": p.Services,
			}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"status": false, "message": "parking not found"})
}

func (f *FakeAPI) deleteParking(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.parkings[:0]
	for _, p := range f.parkings {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.parkings = kept
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok"})
}

func (f *FakeAPI) services(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": []map[string]any{
		{"id": 1, "title": "Security", "services": []map[string]any{
			{"id": 1, "title": "CCTV", "id_category": 1, "isActive": true},
			{"id": 2, "title": "Guard", "id_category": 1, "isActive": false},
		}},
	}})
}

func (f *FakeAPI) getChats(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	chats := []map[string]any{
		{"id_chat": 1, "username": "Ivan Ivanov", "message": map[string]any{"msg": "hello", "time": 1700000000000}},
		{"id_chat": 2, "username": "Oleg Sidorov"},
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true, "message": "ok", "total": len(chats), "chats": page(chats, num(in, "offset"), num(in, "limit")),
	})
}

func (f *FakeAPI) getChat(w http.ResponseWriter, r *http.Request) {
	id := num(readJSON(r), "id")
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "message": "ok", "chat": map[string]any{
		"id": id, "reg_date": "2024-03-05T10:00:00Z",
		"last_messages": []map[string]any{{"msg": "hello", "msgType": 0, "timestamp_send": 1700000000000, "isMe": false}},
	}})
}

func (f *FakeAPI) getMessages(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	msgs := make([]map[string]any, 0, 25)
	for i := 0; i < 25; i++ {
		msgs = append(msgs, map[string]any{"msg": fmt.Sprintf("m%d", i), "msgType": 0, "timestamp_send": 1700000000000 + i, "isMe": i%2 == 0})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": true, "message": "ok", "id_chat": num(in, "id_chat"), "total": len(msgs),
		"messages": page(msgs, num(in, "offset"), num(in, "limit")),
	})
}

func (f *FakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": false, "message": err.Error()})
		return
	}
	var paths []string
	for i, fh := range r.MultipartForm.File["files"] {
		paths = append(paths, fmt.Sprintf("/files/%d-%s", i, fh.Filename))
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "files_path": paths})
}

// chatSocket echoes every message back to the sender.
func (f *FakeAPI) chatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.sockets = append(f.sockets, conn)
	f.mu.Unlock()
	go func() {
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}()
}
