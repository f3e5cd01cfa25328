package demo

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

type User struct {
	ID    int    `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Email string `json:"email" msgpack:"email"`
}

// Store is an in-memory user store. It outlives handler rebuilds on config
// reload.
type Store struct {
	mu     sync.RWMutex
	users  map[int]User
	nextID int
}

// NewStore creates a store holding users, numbered from 1.
func NewStore(users ...User) *Store {
	s := &Store{users: make(map[int]User), nextID: 1}
	for _, u := range users {
		if _, err := s.Create(u.Name, u.Email); err != nil {
			panic(err)
		}
	}
	return s
}

// List returns all users ordered by ID.
func (s *Store) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) Get(id int) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Create adds a user. Emails are unique, compared case-insensitively.
func (s *Store) Create(name, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return User{}, domain.NewError("error.user.exists", "A user with this email address already exists.").
				WithStatusCode(http.StatusConflict).
				WithField("email", "duplicate", "Email address is already registered.")
		}
	}

	u := User{ID: s.nextID, Name: name, Email: email}
	s.users[u.ID] = u
	s.nextID++
	return u, nil
}

// Delete removes a user and reports whether it existed.
func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok
}
