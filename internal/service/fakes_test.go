package service

import (
	"context"
	"sync"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/Evgen-Mutagen/moneytransfer/internal/repository"
)

// memStore is an in-memory stand-in for the users/accounts/transactions
// tables. Each method holds the lock for its whole unit, which gives the
// same all-or-nothing behaviour as a serializable transaction.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*model.User
	accounts     map[int64]*model.Account
	transactions []model.Transaction
	nextID       int64
	failWith     error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		accounts: make(map[int64]*model.Account),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) balanceOf(username string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[username]
	for _, a := range m.accounts {
		if u != nil && a.UserID == u.ID {
			return a.Balance
		}
	}
	return -1
}

func (m *memStore) total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, a := range m.accounts {
		sum += a.Balance
	}
	return sum
}

type memUsers struct{ *memStore }

func (m memUsers) CreateWithAccount(_ context.Context, user *model.User, initialBalance int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if _, ok := m.users[user.Username]; ok {
		return nil, core.E(core.KindUsernameAlreadyExists, "User with username %s already exists", user.Username)
	}

	user.ID = m.id()
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.Username] = &stored

	account := &model.Account{ID: m.id(), UserID: user.ID, Balance: initialBalance}
	stored2 := *account
	m.accounts[account.ID] = &stored2
	return account, nil
}

func (m memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type memAccounts struct{ *memStore }

func (m memAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	for _, a := range m.accounts {
		if a.UserID == u.ID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memAccounts) Transfer(_ context.Context, senderID, receiverID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}

	sender, ok := m.accounts[senderID]
	if !ok || sender.Balance < amount {
		return 0, core.Wrap(core.KindPersistence, repository.ErrNoRowsAffected, "Internal server error")
	}
	receiver, ok := m.accounts[receiverID]
	if !ok {
		return 0, core.Wrap(core.KindPersistence, repository.ErrNoRowsAffected, "Internal server error")
	}

	sender.Balance -= amount
	receiver.Balance += amount
	m.transactions = append(m.transactions, model.Transaction{
		ID:                m.id(),
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
	})
	return sender.Balance, nil
}
