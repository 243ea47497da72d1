// Package session holds the signed-in terminal user and dispatches to the
// view that belongs to their role.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"restaurant-system/internal/apiclient"
	"restaurant-system/internal/models"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrSignedOut   = errors.New("session is signed out")
)

// Session is created by Login and torn down by Logout
type Session struct {
	User models.User
	API  *apiclient.Client
}

// Login exchanges credentials for a token and returns a session bound to it
func Login(ctx context.Context, api *apiclient.Client, username, password string) (*Session, error) {
	resp, err := api.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if _, err := models.ParseRole(string(resp.Role)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, resp.Role)
	}

	return &Session{
		User: models.User{
			ID:       resp.UserID,
			Username: username,
			FullName: resp.FullName,
			Role:     resp.Role,
		},
		API: api.WithToken(resp.AccessToken),
	}, nil
}

// Active reports whether Logout has not been called yet
func (s *Session) Active() bool {
	return s != nil && s.API != nil
}

// Logout revokes the token server-side and clears the session either way
func (s *Session) Logout(ctx context.Context) error {
	if !s.Active() {
		return ErrSignedOut
	}
	err := s.API.Logout(ctx)
	s.API = nil
	s.User = models.User{}
	return err
}

// Handler runs the view of one role until ctx is cancelled or the user quits
type Handler func(ctx context.Context, s *Session) error

// Router maps each role to its view
type Router struct {
	handlers map[models.Role]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[models.Role]Handler)}
}

func (r *Router) Handle(role models.Role, h Handler) {
	r.handlers[role] = h
}

// Dispatch runs the handler registered for the session's role
func (r *Router) Dispatch(ctx context.Context, s *Session) error {
	if !s.Active() {
		return ErrSignedOut
	}
	h, ok := r.handlers[s.User.Role]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, s.User.Role)
	}
	return h(ctx, s)
}

var greetings = []string{
	"Welcome back, %s!",
	"Good to see you, %s.",
	"Hello %s, let's have a great shift!",
	"Ready when you are, %s.",
	"Hi %s, the floor is yours.",
}

var praises = []string{
	"Nice work!",
	"Order is on its way.",
	"Smooth as always.",
	"Another happy table.",
	"Great job!",
}

// Greeting picks a welcome line for name. A nil rnd uses the global source.
func Greeting(name string, rnd *rand.Rand) string {
	return fmt.Sprintf(greetings[pick(rnd, len(greetings))], name)
}

// Praise picks a short line shown after a successful submission
func Praise(rnd *rand.Rand) string {
	return praises[pick(rnd, len(praises))]
}

func pick(rnd *rand.Rand, n int) int {
	if rnd == nil {
		return rand.IntN(n)
	}
	return rnd.IntN(n)
}
