package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tessera.dev/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. It backs the
// HTTP tests and local runs without Postgres; one mutex guards both tables so
// RotateRefresh stays atomic.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*Account      // account id -> record
	emails   map[string]string        // email -> account id
	tokens   map[string]*SessionToken // token id -> record
	digests  map[string]string        // token digest -> token id
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[string]*Account),
		emails:   make(map[string]string),
		tokens:   make(map[string]*SessionToken),
		digests:  make(map[string]string),
	}
}

func (m *InMemory) Accounts() AccountStore { return memAccounts{m} }
func (m *InMemory) Tokens() TokenStore     { return memTokens{m} }

func (m *InMemory) RotateRefresh(ctx context.Context, digest string, now time.Time, scope RotationScope, access, refresh *SessionToken) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.digests[digest]
	if !ok {
		return nil, ErrUnknownToken
	}
	consumed := m.tokens[id]
	if consumed == nil || consumed.Kind != TokenKindRefresh {
		return nil, ErrUnknownToken
	}

	// Single use: the presented token is gone no matter how the exchange ends.
	m.removeTokenLocked(id)

	if consumed.Expired(now) {
		return nil, ErrExpiredToken
	}
	acct, ok := m.accounts[consumed.AccountID]
	if !ok {
		return nil, ErrUnknownToken
	}
	if !acct.Active {
		return nil, ErrInactiveAccount
	}

	switch scope {
	case RotationScopePair:
		for tid, tok := range m.tokens {
			if tok.PairID == consumed.PairID {
				m.removeTokenLocked(tid)
			}
		}
	default:
		for tid, tok := range m.tokens {
			if tok.AccountID == consumed.AccountID {
				m.removeTokenLocked(tid)
			}
		}
	}

	access.AccountID = consumed.AccountID
	refresh.AccountID = consumed.AccountID
	if err := m.insertTokenLocked(access); err != nil {
		return nil, err
	}
	if err := m.insertTokenLocked(refresh); err != nil {
		return nil, err
	}
	return cloneAccount(acct), nil
}

func (m *InMemory) insertTokenLocked(token *SessionToken) error {
	if token.ID == "" {
		token.ID = ids.New()
	}
	if _, exists := m.digests[token.TokenDigest]; exists {
		return fmt.Errorf("%w: token digest", ErrConflict)
	}
	cp := *token
	m.tokens[cp.ID] = &cp
	m.digests[cp.TokenDigest] = cp.ID
	return nil
}

func (m *InMemory) removeTokenLocked(id string) {
	tok, ok := m.tokens[id]
	if !ok {
		return
	}
	delete(m.digests, tok.TokenDigest)
	delete(m.tokens, id)
}

type memAccounts struct{ m *InMemory }

func (s memAccounts) Create(ctx context.Context, acct *Account) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if acct.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, exists := s.m.emails[acct.Email]; exists {
		return fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if acct.ID == "" {
		acct.ID = ids.New()
	}
	s.m.accounts[acct.ID] = cloneAccount(acct)
	s.m.emails[acct.Email] = acct.ID
	return nil
}

func (s memAccounts) Find(ctx context.Context, id string) (*Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	acct, ok := s.m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(acct), nil
}

func (s memAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(s.m.accounts[id]), nil
}

func (s memAccounts) List(ctx context.Context, f AccountFilter) ([]*Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var all []*Account
	for _, acct := range s.m.accounts {
		if f.OrgID != "" && acct.OrgID != f.OrgID {
			continue
		}
		all = append(all, cloneAccount(acct))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return nil, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (s memAccounts) Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	acct, ok := s.m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.DisplayName != nil {
		acct.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Role != nil {
		acct.Role = *upd.Role
	}
	if upd.Active != nil {
		acct.Active = *upd.Active
	}
	if upd.SecretDigest != nil {
		acct.SecretDigest = *upd.SecretDigest
	}
	if upd.LastLogin != nil {
		t := *upd.LastLogin
		acct.LastLogin = &t
	}
	acct.UpdatedAt = time.Now().UTC()
	return cloneAccount(acct), nil
}

type memTokens struct{ m *InMemory }

func (s memTokens) Insert(ctx context.Context, token *SessionToken) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if token.AccountID == "" || token.TokenDigest == "" {
		return fmt.Errorf("%w: account id and digest are required", ErrInvalidInput)
	}
	return s.m.insertTokenLocked(token)
}

func (s memTokens) FindByDigest(ctx context.Context, digest string, kind TokenKind) (*SessionToken, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.digests[digest]
	if !ok {
		return nil, ErrNotFound
	}
	tok := s.m.tokens[id]
	if tok == nil || tok.Kind != kind {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s memTokens) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.tokens[id]; !ok {
		return ErrNotFound
	}
	s.m.removeTokenLocked(id)
	return nil
}

func (s memTokens) DeleteByDigest(ctx context.Context, digest string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	id, ok := s.m.digests[digest]
	if !ok {
		return 0, nil
	}
	s.m.removeTokenLocked(id)
	return 1, nil
}

func (s memTokens) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, tok := range s.m.tokens {
		if tok.AccountID == accountID {
			s.m.removeTokenLocked(id)
			n++
		}
	}
	return n, nil
}

// cloneAccount returns a defensive copy so callers never alias store state.
func cloneAccount(acct *Account) *Account {
	cp := *acct
	if acct.LastLogin != nil {
		t := *acct.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}
