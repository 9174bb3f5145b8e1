package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo keeps account state in memory so tests can assert on balances
// after an operation without a database.
type fakeUserRepo struct {
	users    map[int64]*models.User
	nextID   int64
	lockErrs []error // popped on each GetByIDForUpdate call
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]*models.User), nextID: 1}
	for _, u := range users {
		repo.users[u.ID] = u
		if u.ID >= repo.nextID {
			repo.nextID = u.ID + 1
		}
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Contact == user.Contact {
			return errors.ErrDuplicateIdentity
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errors.ErrAccountNotFound
}

func (r *fakeUserRepo) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	if len(r.lockErrs) > 0 {
		err := r.lockErrs[0]
		r.lockErrs = r.lockErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) AdjustBalance(ctx context.Context, tx *sql.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	user, ok := r.users[id]
	if !ok {
		return decimal.Zero, errors.ErrInsufficientFunds
	}
	next := user.Balance.Add(delta)
	if next.Cmp(decimal.Zero) < 0 {
		return decimal.Zero, errors.ErrInsufficientFunds
	}
	user.Balance = next
	return next, nil
}

func (r *fakeUserRepo) ListOthers(ctx context.Context, excludeID int64) ([]*models.User, error) {
	var users []*models.User
	for _, user := range r.users {
		if user.ID != excludeID {
			copied := *user
			users = append(users, &copied)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *fakeUserRepo) totalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, user := range r.users {
		total = total.Add(user.Balance)
	}
	return total
}

type fakeLedgerRepo struct {
	entries []*models.LedgerEntry
	nextID  int64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{nextID: 1}
}

func (r *fakeLedgerRepo) Append(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	entry.ID = r.nextID
	r.nextID++
	entry.CreatedAt = time.Now()
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeLedgerRepo) ListByUser(ctx context.Context, userID int64) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			copied := *r.entries[i]
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

func (r *fakeLedgerRepo) entriesFor(userID int64) []*models.LedgerEntry {
	entries, _ := r.ListByUser(context.Background(), userID)
	return entries
}

type fakeTransferRepo struct {
	transfers []*models.Transfer
}

func (r *fakeTransferRepo) Create(ctx context.Context, tx *sql.Tx, transfer *models.Transfer) error {
	if transfer.ID == "" {
		transfer.ID = fmt.Sprintf("transfer-%d", len(r.transfers)+1)
	}
	transfer.CreatedAt = time.Now()
	copied := *transfer
	r.transfers = append(r.transfers, &copied)
	return nil
}

func (r *fakeTransferRepo) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	for _, transfer := range r.transfers {
		if transfer.ID == id {
			copied := *transfer
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("transfer not found")
}

type publishedEvent struct {
	topic string
	event any
}

type fakePublisher struct {
	published []publishedEvent
	err       error
}

func (p *fakePublisher) Publish(topic string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedEvent{topic: topic, event: event})
	return nil
}
