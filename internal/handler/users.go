package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/router"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned by the store for unknown IDs.
var ErrUserNotFound = errors.New("user not found")

// User is the resource served under /users.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUserRequest is the POST /users body.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserStore is an in-memory user repository safe for concurrent use.
type UserStore struct {
	mu     sync.RWMutex
	users  map[int]User
	nextID int
}

// NewUserStore creates an empty store. IDs start at 1.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int]User), nextID: 1}
}

// Create stores a new user and returns it with its assigned ID.
func (s *UserStore) Create(name, email string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: s.nextID, Name: name, Email: email}
	s.users[u.ID] = u
	s.nextID++
	return u
}

// Get returns the user with the given ID.
func (s *UserStore) Get(id int) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Delete removes the user with the given ID.
func (s *UserStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// List returns all users ordered by ID.
func (s *UserStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return a.ID - b.ID })
	return out
}

// UsersHandler serves the /users resource.
type UsersHandler struct {
	store  *UserStore
	logger *zap.Logger
}

// NewUsersHandler creates a UsersHandler over store.
func NewUsersHandler(store *UserStore, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{store: store, logger: logger}
}

// Get returns one user.
func (h *UsersHandler) Get(req *common.Request) (*common.Response, error) {
	id, err := userID(req)
	if err != nil {
		return nil, err
	}
	u, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, u)
}

// Delete removes one user. The route requires authentication.
func (h *UsersHandler) Delete(req *common.Request) (*common.Response, error) {
	id, err := userID(req)
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(id); err != nil {
		return nil, err
	}
	h.logger.Info("User deleted", zap.Int("id", id))
	return common.Empty(http.StatusNoContent), nil
}

// userID reads the id path parameter. Digit strings too large for an int name no stored user.
func userID(req *common.Request) (int, error) {
	id, err := common.ParamInt(req, "id")
	if err != nil {
		return 0, ErrUserNotFound
	}
	return id, nil
}

// List returns every user.
func (h *UsersHandler) List(*common.Request) (*common.Response, error) {
	return jsonResponse(http.StatusOK, h.store.List())
}

// Create is the generic handler behind POST /users.
func (h *UsersHandler) Create(_ *common.Request, data CreateUserRequest) (User, error) {
	data.Name = strings.TrimSpace(data.Name)
	if data.Name == "" {
		return User{}, router.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}
	if !strings.Contains(data.Email, "@") {
		return User{}, router.NewHTTPError(http.StatusUnprocessableEntity, "email is invalid")
	}
	u := h.store.Create(data.Name, data.Email)
	h.logger.Info("User created", zap.Int("id", u.ID))
	return u, nil
}

// OnException turns store lookups that miss into 404 responses.
func (h *UsersHandler) OnException(_ *common.Request, err error) (*common.Response, error) {
	if errors.Is(err, ErrUserNotFound) {
		return jsonResponse(http.StatusNotFound, map[string]string{
			"code":  "USER_NOT_FOUND",
			"error": "User not found.",
		})
	}
	return nil, nil
}
