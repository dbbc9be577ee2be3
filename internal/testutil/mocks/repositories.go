// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
)

// TransactionStore is an in-memory ports.TransactionRepository.
// UpdateLocked holds a store-wide lock, standing in for SELECT ... FOR UPDATE.
type TransactionStore struct {
	mu      sync.Mutex
	byRef   map[string]*domain.Transaction
	Updates int // committed UpdateLocked writes
}

// NewTransactionStore creates a store seeded with txns
func NewTransactionStore(txns ...*domain.Transaction) *TransactionStore {
	s := &TransactionStore{byRef: make(map[string]*domain.Transaction)}
	for _, txn := range txns {
		cp := *txn
		s.byRef[txn.Reference] = &cp
	}
	return s
}

var _ ports.TransactionRepository = (*TransactionStore)(nil)

func (s *TransactionStore) Create(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRef[txn.Reference]; exists {
		return domain.ErrTxnDuplicate
	}
	for _, other := range s.byRef {
		if other.MerchantOrderNo == txn.MerchantOrderNo {
			return domain.ErrTxnDuplicate
		}
	}
	if txn.State == "" {
		txn.State = domain.TransactionStatePending
	}
	cp := *txn
	s.byRef[txn.Reference] = &cp
	return nil
}

func (s *TransactionStore) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.byRef[reference]
	if !ok {
		return nil, domain.ErrTxnNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *TransactionStore) FindByMerchantOrderNo(ctx context.Context, orderNo string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if txn, ok := s.byRef[orderNo]; ok {
		cp := *txn
		return &cp, nil
	}
	for _, txn := range s.byRef {
		if txn.MerchantOrderNo == orderNo {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, domain.ErrTxnNotFound
}

func (s *TransactionStore) UpdateLocked(ctx context.Context, reference string, fn ports.MutateFunc) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byRef[reference]
	if !ok {
		return nil, domain.ErrTxnNotFound
	}

	working := *stored
	changed, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if changed {
		s.byRef[reference] = &working
		s.Updates++
	}
	cp := working
	return &cp, nil
}

// Get returns the stored transaction, or nil
func (s *TransactionStore) Get(reference string) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.byRef[reference]
	if !ok {
		return nil
	}
	cp := *txn
	return &cp
}

// MockProviderRepository is a mock implementation of ports.ProviderRepository
type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) FindByCode(ctx context.Context, code string) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

// MockCredentialLookup is a mock implementation of ports.CredentialLookup
type MockCredentialLookup struct {
	mock.Mock
}

func (m *MockCredentialLookup) FindCredential(ctx context.Context, code string) (*domain.ProviderCredential, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderCredential), args.Error(1)
}

// StaticCredentials always resolves to a copy of the same credential
type StaticCredentials struct {
	Credential *domain.ProviderCredential
	Err        error
}

func (s StaticCredentials) FindCredential(ctx context.Context, code string) (*domain.ProviderCredential, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	cp := *s.Credential
	return &cp, nil
}
