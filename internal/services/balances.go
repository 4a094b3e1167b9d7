package services

import (
	"context"
	"sync"

	"bridge/agent/internal/models"
	"bridge/agent/internal/utils/address"
	"bridge/agent/internal/utils/amount"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBalanceWorkers = 4

// BalanceLoader reads ERC20 balances of the connected account.
type BalanceLoader struct {
	session Session
	logger  *zap.SugaredLogger
	workers int

	mu       sync.Mutex
	snapshot models.BalanceSnapshot
}

func NewBalanceLoader(session Session, logger *zap.SugaredLogger) *BalanceLoader {
	return &BalanceLoader{
		session:  session,
		logger:   logger,
		workers:  defaultBalanceWorkers,
		snapshot: models.BalanceSnapshot{Balances: map[string]float64{}},
	}
}

// LoadBalances returns exactly one entry per requested token. A token that
// cannot be read reports 0; only a missing connection fails the call.
func (l *BalanceLoader) LoadBalances(ctx context.Context, tokens []string) (map[string]float64, error) {
	p, err := l.session.Provider()
	if err != nil {
		return nil, err
	}
	owner := l.session.State().Address
	ownerAddr := common.HexToAddress(owner)

	var mu sync.Mutex
	out := make(map[string]float64, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, token := range tokens {
		token := token
		g.Go(func() error {
			var value float64
			if common.IsHexAddress(token) {
				addr := common.HexToAddress(token)
				decimals := readDecimals(gctx, p, addr, l.logger)
				raw, err := readBalance(gctx, p, addr, ownerAddr)
				if err != nil {
					l.logger.Warnw("balanceOf failed, reporting zero", "token", token, "owner", owner, "error", err)
				} else {
					value = amount.ToFloat(raw, decimals)
				}
			} else {
				l.logger.Warnw("not a token address, reporting zero", "token", token)
			}
			mu.Lock()
			out[token] = value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	l.merge(owner, out)
	return out, nil
}

// Snapshot returns a copy of the balances gathered for the current owner.
func (l *BalanceLoader) Snapshot() models.BalanceSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := models.BalanceSnapshot{Owner: l.snapshot.Owner, Balances: make(map[string]float64, len(l.snapshot.Balances))}
	for k, v := range l.snapshot.Balances {
		cp.Balances[k] = v
	}
	return cp
}

func (l *BalanceLoader) merge(owner string, balances map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !address.Equal(l.snapshot.Owner, owner) {
		l.snapshot = models.BalanceSnapshot{Owner: owner, Balances: map[string]float64{}}
	}
	for k, v := range balances {
		l.snapshot.Balances[k] = v
	}
}
