package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/email"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryOrderStore enforces the unique authorization id the way the
// database constraint does.
type memoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	byAuth map[string]string

	// CreateFunc replaces Create when set.
	CreateFunc func(ctx context.Context, order *domain.Order) error
	// GetByAuthorizationIDFunc replaces GetByAuthorizationID when set.
	GetByAuthorizationIDFunc func(ctx context.Context, authorizationID string) (*domain.Order, error)
}

var _ domain.OrderStore = (*memoryOrderStore)(nil)

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{
		orders: make(map[string]domain.Order),
		byAuth: make(map[string]string),
	}
}

func (m *memoryOrderStore) Create(ctx context.Context, order *domain.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byAuth[order.PaymentAuthorizationID]; exists {
		return domain.ErrDuplicatePayment
	}
	m.orders[order.ID] = *order
	m.byAuth[order.PaymentAuthorizationID] = order.ID
	return nil
}

func (m *memoryOrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memoryOrderStore) GetByAuthorizationID(ctx context.Context, authorizationID string) (*domain.Order, error) {
	if m.GetByAuthorizationIDFunc != nil {
		return m.GetByAuthorizationIDFunc(ctx, authorizationID)
	}
	m.mu.Lock()
	id, ok := m.byAuth[authorizationID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return m.Get(ctx, id)
}

func (m *memoryOrderStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryOrderStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// memorySessionStore holds carts, wishlists and drafts per session.
type memorySessionStore struct {
	mu        sync.Mutex
	carts     map[string]domain.Cart
	drafts    map[string]domain.OrderDraft
	wishlists map[string]domain.Wishlist

	// SaveDraftFunc replaces SaveDraft when set.
	SaveDraftFunc func(ctx context.Context, sessionID string, draft *domain.OrderDraft) error
	// GetCartFunc replaces GetCart when set.
	GetCartFunc func(ctx context.Context, sessionID string) (*domain.Cart, error)
}

var (
	_ domain.CartStore     = (*memorySessionStore)(nil)
	_ domain.DraftStore    = (*memorySessionStore)(nil)
	_ domain.WishlistStore = (*memorySessionStore)(nil)
)

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		carts:     make(map[string]domain.Cart),
		drafts:    make(map[string]domain.OrderDraft),
		wishlists: make(map[string]domain.Wishlist),
	}
}

func (m *memorySessionStore) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return &domain.Cart{SessionID: sessionID}, nil
	}
	c.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &c, nil
}

func (m *memorySessionStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cart
	c.Lines = append([]domain.CartLine(nil), cart.Lines...)
	m.carts[cart.SessionID] = c
	return nil
}

func (m *memorySessionStore) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

func (m *memorySessionStore) SaveDraft(ctx context.Context, sessionID string, draft *domain.OrderDraft) error {
	if m.SaveDraftFunc != nil {
		return m.SaveDraftFunc(ctx, sessionID, draft)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[sessionID] = *draft
	return nil
}

func (m *memorySessionStore) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[sessionID]
	if !ok {
		return nil, domain.ErrDraftMissing
	}
	return &d, nil
}

func (m *memorySessionStore) DeleteDraft(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, sessionID)
	return nil
}

func (m *memorySessionStore) GetWishlist(ctx context.Context, ownerKey string) (*domain.Wishlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wishlists[ownerKey]
	if !ok {
		return &domain.Wishlist{OwnerKey: ownerKey}, nil
	}
	w.Items = append([]domain.WishlistItem(nil), w.Items...)
	return &w, nil
}

func (m *memorySessionStore) SaveWishlist(ctx context.Context, wishlist *domain.Wishlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := *wishlist
	w.Items = append([]domain.WishlistItem(nil), wishlist.Items...)
	m.wishlists[wishlist.OwnerKey] = w
	return nil
}

func (m *memorySessionStore) DeleteWishlist(ctx context.Context, ownerKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wishlists, ownerKey)
	return nil
}

func (m *memorySessionStore) hasDraft(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.drafts[sessionID]
	return ok
}

func (m *memorySessionStore) cartLen(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts[sessionID].Lines)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderCreatedEvent

	PublishFunc func(ctx context.Context, event domain.OrderCreatedEvent) error
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error {
	if p.PublishFunc != nil {
		return p.PublishFunc(ctx, event)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.OrderCreatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderCreatedEvent(nil), p.events...)
}

// memoryUserStore is an in-memory domain.UserStore.
type memoryUserStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	sessions map[string]domain.UserSession

	GetUserByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

var _ domain.UserStore = (*memoryUserStore)(nil)

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:    make(map[string]domain.User),
		sessions: make(map[string]domain.UserSession),
	}
}

func (m *memoryUserStore) CreateUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memoryUserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryUserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	m.users[userID] = u
	return nil
}

func (m *memoryUserStore) CreateSession(ctx context.Context, session *domain.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = *session
	return nil
}

func (m *memoryUserStore) GetSession(ctx context.Context, token string) (*domain.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, domain.ErrSessionExpired
	}
	return &s, nil
}

func (m *memoryUserStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memoryUserStore) DeleteUserSessions(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *memoryUserStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// memoryResetStore is an in-memory domain.PasswordResetStore.
type memoryResetStore struct {
	mu     sync.Mutex
	tokens map[string]resetEntry
}

type resetEntry struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newMemoryResetStore() *memoryResetStore {
	return &memoryResetStore{tokens: make(map[string]resetEntry)}
}

func (m *memoryResetStore) CreateResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = resetEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memoryResetStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tokens[tokenHash]
	if !ok || e.used || !e.expiresAt.After(now) {
		return "", domain.ErrInvalidResetToken
	}
	e.used = true
	m.tokens[tokenHash] = e
	return e.userID, nil
}

// fakeMailer records reset emails.
type fakeMailer struct {
	mu   sync.Mutex
	sent []email.PasswordResetEmail

	SendPasswordResetFunc func(ctx context.Context, data email.PasswordResetEmail) error
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, data email.PasswordResetEmail) error {
	if f.SendPasswordResetFunc != nil {
		return f.SendPasswordResetFunc(ctx, data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}
