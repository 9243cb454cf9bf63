package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb/docstore"
)

const defaultSessionTTL = 12 * time.Hour

// Session is an authenticated admin login. Handlers receive it explicitly;
// nothing in the service keeps a notion of the current user.
type Session struct {
	Token     string
	Account   Account
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type sessionRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	byTok map[string]*Session
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	return &sessionRegistry{ttl: ttl, byTok: make(map[string]*Session)}
}

// Authenticate returns the matching account, or nil when the pair does not
// match. Only storage failures are errors.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	doc, err := s.store.FindByCredentials(ctx, username, password)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a account
	if err := doc.Decode(&a); err != nil {
		return nil, err
	}
	return &Account{
		ID:          doc.ID,
		DisplayName: a.DisplayName,
		Username:    a.Username,
		Password:    a.Password,
	}, nil
}

// AddAccount stores a new admin login. Usernames are not checked for
// uniqueness; lookups take the first match.
func (s *Service) AddAccount(ctx context.Context, displayName, username, password string) (Account, error) {
	switch {
	case blank(username):
		return Account{}, &ValidationError{Field: "username"}
	case password == "":
		return Account{}, &ValidationError{Field: "password"}
	}
	a := account{
		DisplayName: strings.TrimSpace(displayName),
		Username:    strings.TrimSpace(username),
		Password:    password,
	}
	if a.DisplayName == "" {
		a.DisplayName = a.Username
	}
	id, err := s.store.Create(ctx, docstore.Accounts, docstore.Fields{
		"display_name": a.DisplayName,
		"username":     a.Username,
		"password":     a.Password,
	})
	if err != nil {
		return Account{}, err
	}
	return Account{ID: id, DisplayName: a.DisplayName, Username: a.Username, Password: a.Password}, nil
}

// Login authenticates and opens a session. It returns nil, nil when the
// credentials do not match.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	acct, err := s.Authenticate(ctx, username, password)
	if err != nil || acct == nil {
		return nil, err
	}
	now := s.now()
	sess := &Session{
		Token:     uuid.NewString(),
		Account:   *acct,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessions.ttl),
	}
	sess.Account.Password = ""

	r := s.sessions
	r.mu.Lock()
	for tok, old := range r.byTok {
		if old.Expired(now) {
			delete(r.byTok, tok)
		}
	}
	r.byTok[sess.Token] = sess
	r.mu.Unlock()

	s.log.Info("admin logged in", zap.String("username", acct.Username))
	return sess, nil
}

// Logout ends sess. Logging out twice is harmless.
func (s *Service) Logout(sess *Session) {
	if sess == nil {
		return
	}
	r := s.sessions
	r.mu.Lock()
	delete(r.byTok, sess.Token)
	r.mu.Unlock()
}

// Session looks up a live session by token.
func (s *Service) Session(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	r := s.sessions
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byTok[token]
	if !ok {
		return nil, false
	}
	if sess.Expired(s.now()) {
		delete(r.byTok, token)
		return nil, false
	}
	return sess, true
}
