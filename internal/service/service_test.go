package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agrovest/backend/internal/domain"
)

// fakeRepo is an in-memory InvestmentRepository for service tests.
type fakeRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]*domain.Investment

	failCreate bool
	failList   bool
	// rejectTxRefs makes Create report a duplicate for these references
	rejectTxRefs map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:      make(map[string]*domain.Investment),
		rejectTxRefs: make(map[string]bool),
	}
}

func (r *fakeRepo) Create(ctx context.Context, inv *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return fmt.Errorf("store down")
	}
	if r.rejectTxRefs[inv.TxRef] {
		return domain.ErrDuplicateTxRef
	}
	for _, existing := range r.records {
		if existing.TxRef == inv.TxRef {
			return domain.ErrDuplicateTxRef
		}
	}
	r.seq++
	inv.ID = fmt.Sprintf("inv-%d", r.seq)
	inv.CreatedAt = time.Now().UTC()
	inv.UpdatedAt = inv.CreatedAt
	clone := *inv
	r.records[inv.ID] = &clone
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (r *fakeRepo) GetByTxRef(ctx context.Context, txRef string) (*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.records {
		if inv.TxRef == txRef {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Investment
	for _, inv := range r.records {
		if inv.UserID == userID {
			clone := *inv
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList {
		return nil, fmt.Errorf("store down")
	}
	var out []*domain.Investment
	for _, inv := range r.records {
		if inv.Status == status {
			clone := *inv
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAll(ctx context.Context) ([]*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Investment
	for _, inv := range r.records {
		clone := *inv
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeRepo) UpdateIf(ctx context.Context, id string, expect domain.Status, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok || inv.Status != expect {
		return false, nil
	}
	applyFields(inv, fields)
	inv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if inv.Status != from {
		return false, nil
	}
	inv.Status = to
	applyFields(inv, fields)
	inv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func applyFields(inv *domain.Investment, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "countdown_days":
			inv.CountdownDays = v.(int)
		case "start_date":
			inv.StartDate = v.(time.Time)
		case "maturity_date":
			inv.MaturityDate = v.(time.Time)
		case "receipt_url":
			inv.ReceiptURL = v.(string)
		}
	}
}

// mustGet reads a record directly, bypassing the repository contract.
func (r *fakeRepo) mustGet(id string) *domain.Investment {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.records[id]
	return &clone
}

// seed inserts a record directly with the given state.
func (r *fakeRepo) seed(inv *domain.Investment) *domain.Investment {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if inv.ID == "" {
		inv.ID = fmt.Sprintf("inv-%d", r.seq)
	}
	clone := *inv
	r.records[inv.ID] = &clone
	return inv
}

// fakeIdentity resolves a fixed set of users.
type fakeIdentity struct {
	users map[string]*domain.User
}

func newFakeIdentity(users ...*domain.User) *fakeIdentity {
	m := make(map[string]*domain.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeIdentity{users: m}
}

func (f *fakeIdentity) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// fakeCache implements InvestmentCache in memory.
type fakeCache struct {
	mu      sync.Mutex
	lists   map[string][]*domain.Investment
	markers map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		lists:   make(map[string][]*domain.Investment),
		markers: make(map[string]bool),
	}
}

func (c *fakeCache) GetUserInvestments(ctx context.Context, userID string) ([]*domain.Investment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists[userID], nil
}

func (c *fakeCache) SetUserInvestments(ctx context.Context, userID string, investments []*domain.Investment, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[userID] = investments
	return nil
}

func (c *fakeCache) InvalidateUserInvestments(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, userID)
	return nil
}

func (c *fakeCache) MarkWebhookEvent(ctx context.Context, txRef string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markers[txRef] {
		return false, nil
	}
	c.markers[txRef] = true
	return true, nil
}

// fakeNotifier records every notification sent.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) Send(to, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, subject)
}

// fakeGateway returns scripted charge results per tx_ref.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	initErr  error
	verErr   error
	verified []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]string)}
}

func (g *fakeGateway) InitiateCharge(ctx context.Context, charge ChargeInput) (string, error) {
	if g.initErr != nil {
		return "", g.initErr
	}
	return "https://gateway.test/pay/" + charge.TxRef, nil
}

func (g *fakeGateway) VerifyByReference(ctx context.Context, txRef string) (*GatewayCharge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = append(g.verified, txRef)
	if g.verErr != nil {
		return nil, g.verErr
	}
	status, ok := g.statuses[txRef]
	if !ok {
		status = "pending"
	}
	return &GatewayCharge{TxRef: txRef, Status: status}, nil
}

func testUser() *domain.User {
	return &domain.User{
		ID:    "user-1",
		Email: "farmer@example.com",
		Name:  "Test Farmer",
		Phone: "+2348000000000",
		Roles: []string{domain.RoleInvestor},
	}
}

func newTestLifecycle() (*LifecycleService, *fakeRepo, *fakeCache, *fakeNotifier) {
	repo := newFakeRepo()
	cache := newFakeCache()
	notifier := &fakeNotifier{}
	lifecycle := NewLifecycleService(repo, newFakeIdentity(testUser()), cache, notifier)
	return lifecycle, repo, cache, notifier
}
