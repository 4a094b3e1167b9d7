package mocks

import (
	"context"
	"math/big"
	"sync"

	"bridge/agent/internal/models"
	"bridge/agent/internal/stores"

	"github.com/ethereum/go-ethereum/core/types"
)

type MockKeyStore struct {
	Addr string
	Err  error
}

func (f *MockKeyStore) Accounts(ctx context.Context) []string {
	if f.Addr == "" {
		return nil
	}
	return []string{f.Addr}
}
func (f *MockKeyStore) HasKey(ctx context.Context, addr string) bool {
	return addr == f.Addr
}
func (f *MockKeyStore) SignTx(ctx context.Context, address string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return tx, f.Err
}

type MockSnapshotStore struct {
	mu      sync.Mutex
	snap    *models.Snapshot
	SaveErr error
	Saves   int
	Clears  int
}

func (f *MockSnapshotStore) Save(ctx context.Context, snap models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Saves++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.snap = &snap
	return nil
}

func (f *MockSnapshotStore) Load(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil, stores.ErrSnapshotNotFound
	}
	cp := *f.snap
	return &cp, nil
}

func (f *MockSnapshotStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clears++
	f.snap = nil
	return nil
}

func (f *MockSnapshotStore) Close() error { return nil }

// Current returns the stored snapshot without going through Load.
func (f *MockSnapshotStore) Current() *models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil
	}
	cp := *f.snap
	return &cp
}
