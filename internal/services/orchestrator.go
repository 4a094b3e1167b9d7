package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"bridge/agent/internal/contracts"
	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"
	"bridge/agent/internal/utils/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const receiptLookupTimeout = 30 * time.Second

type OrchestratorConfig struct {
	ApprovalTimeout       time.Duration
	BridgeTimeout         time.Duration
	PollInterval          time.Duration
	GasPriceMarkupPercent int64
	ApproveGasFallback    uint64
	BridgeGasFallback     uint64
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ApprovalTimeout:       120 * time.Second,
		BridgeTimeout:         180 * time.Second,
		PollInterval:          2 * time.Second,
		GasPriceMarkupPercent: 120,
		ApproveGasFallback:    100_000,
		BridgeGasFallback:     500_000,
	}
}

// AddressValidator checks destination addresses on the Hathor side.
type AddressValidator interface {
	ValidateAddress(ctx context.Context, addr string) (bool, error)
}

// TransactionOrchestrator drives approve and receiveTokensTo transactions.
// Calls return as soon as the wallet reports a hash; receipts are reported
// later through the broadcaster.
type TransactionOrchestrator struct {
	session   Session
	pair      models.BridgePair
	events    *EventBroadcaster
	validator AddressValidator
	cfg       OrchestratorConfig
	logger    *zap.SugaredLogger

	watchers sync.WaitGroup
}

// NewTransactionOrchestrator accepts a nil validator; destinations are then
// only checked for emptiness.
func NewTransactionOrchestrator(session Session, pair models.BridgePair, events *EventBroadcaster, validator AddressValidator, cfg OrchestratorConfig, logger *zap.SugaredLogger) *TransactionOrchestrator {
	return &TransactionOrchestrator{
		session:   session,
		pair:      pair,
		events:    events,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Wait blocks until every receipt watcher has published its terminal event.
func (o *TransactionOrchestrator) Wait() {
	o.watchers.Wait()
}

// flow carries what one call resolved before touching the chain.
type flow struct {
	p        provider.Provider
	owner    common.Address
	token    common.Address
	bridge   common.Address
	transfer *models.PendingTransfer
	amount   *big.Int
}

// detach copies the flow so a watcher can advance its transfer while the
// caller still reads the original.
func (f *flow) detach() *flow {
	cp := *f
	t := *f.transfer
	cp.transfer = &t
	return &cp
}

// ValidateAmount rejects empty, malformed and non-positive amounts without touching the chain.
func ValidateAmount(amountStr string) error {
	if _, err := amount.ToSmallestUnit(amountStr, amount.MaxDecimals); err != nil {
		return newError(ErrInvalidAmount, "Enter an amount greater than zero.", err)
	}
	return nil
}

func (o *TransactionOrchestrator) prepare(ctx context.Context, token, amountStr, destination string) (*flow, error) {
	tokenAddr, err := resolveToken(o.pair, token)
	if err != nil {
		return nil, newError(ErrInvalidAmount, "Unknown token.", err)
	}
	p, err := o.session.Provider()
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(o.pair.EVM.BridgeContractAddress) {
		return nil, newError(ErrUnknownProvider, "No bridge contract is configured for "+o.pair.EVM.Name+".", nil)
	}

	f := &flow{
		p:        p,
		owner:    common.HexToAddress(o.session.State().Address),
		token:    tokenAddr,
		bridge:   common.HexToAddress(o.pair.EVM.BridgeContractAddress),
		transfer: models.NewPendingTransfer(tokenAddr.Hex(), amountStr, destination),
	}
	if err := f.transfer.Advance(models.PhaseCheckingAllowance); err != nil {
		return nil, err
	}

	decimals := readDecimals(ctx, p, tokenAddr, o.logger)
	raw, err := amount.ToSmallestUnit(amountStr, decimals)
	if err != nil {
		return nil, newError(ErrInvalidAmount, "The amount is smaller than the token allows.", err)
	}
	f.amount = raw
	f.transfer.Decimals = decimals
	f.transfer.AmountSmallestUnit = raw.String()
	return f, nil
}

func (o *TransactionOrchestrator) checkDestination(ctx context.Context, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return newError(ErrInvalidDestination, "Enter a Hathor destination address.", nil)
	}
	if o.validator == nil {
		return nil
	}
	ok, err := o.validator.ValidateAddress(ctx, destination)
	if err != nil {
		o.logger.Warnw("hathor node unreachable, skipping destination check", "destination", destination, "error", err)
		return nil
	}
	if !ok {
		return newError(ErrInvalidDestination, "The destination is not a valid "+o.pair.Hathor.Name+" address.", nil)
	}
	return nil
}

// BridgeTokenToHathor sends amount of token to destination on Hathor. When the
// bridge allowance is short nothing is sent and the outcome asks for Approve.
func (o *TransactionOrchestrator) BridgeTokenToHathor(ctx context.Context, token, amountStr, destination string) (*models.BridgeOutcome, error) {
	if err := ValidateAmount(amountStr); err != nil {
		return nil, err
	}
	if err := o.checkDestination(ctx, destination); err != nil {
		return nil, err
	}
	f, err := o.prepare(ctx, token, amountStr, destination)
	if err != nil {
		return nil, err
	}
	log := o.logger.With("token", f.token.Hex(), "amount", f.transfer.AmountSmallestUnit, "destination", destination)

	allowance, err := readAllowance(ctx, f.p, f.token, f.owner, f.bridge)
	if err != nil {
		return nil, Classify(err)
	}
	if allowance.Cmp(f.amount) < 0 {
		if err := f.transfer.Advance(models.PhaseApprovalNeeded); err != nil {
			return nil, err
		}
		log.Infow("bridge allowance too low", "allowance", amount.Format(allowance, f.transfer.Decimals), "required", amount.Format(f.amount, f.transfer.Decimals))
		return &models.BridgeOutcome{Status: models.OutcomeApprovalNeeded, Transfer: f.transfer}, nil
	}

	if err := f.transfer.Advance(models.PhaseBridging); err != nil {
		return nil, err
	}
	data, err := contracts.PackReceiveTokensTo(o.pair.Hathor.NetworkID, f.token, destination, f.amount)
	if err != nil {
		return nil, err
	}
	req := o.buildTx(ctx, f, f.bridge, data, o.cfg.BridgeGasFallback)

	hash, err := o.submit(ctx, f, req, o.cfg.BridgeTimeout, models.PhaseConfirming, models.PhaseConfirmed)
	if err != nil {
		log.Warnw("bridge submission failed", "phase", f.transfer.Phase, "error", err)
		return nil, err
	}
	f.transfer.TxHash = hash
	log.Infow("bridge transaction submitted", "txHash", hash)

	return &models.BridgeOutcome{Status: models.OutcomeConfirming, TransactionHash: hash, Transfer: f.transfer}, nil
}

// Approve grants the bridge contract an allowance of amount. It returns once
// the approval has a hash; its receipt is published like a bridge receipt.
func (o *TransactionOrchestrator) Approve(ctx context.Context, token, amountStr string) (*models.ApprovalOutcome, error) {
	if err := ValidateAmount(amountStr); err != nil {
		return nil, err
	}
	f, err := o.prepare(ctx, token, amountStr, "")
	if err != nil {
		return nil, err
	}
	// The allowance was found short by the bridge call that asked for this approval.
	if err := f.transfer.Advance(models.PhaseApprovalNeeded); err != nil {
		return nil, err
	}

	data, err := contracts.PackApprove(f.bridge, f.amount)
	if err != nil {
		return nil, err
	}
	req := o.buildTx(ctx, f, f.token, data, o.cfg.ApproveGasFallback)

	hash, err := o.submit(ctx, f, req, o.cfg.ApprovalTimeout, models.PhaseApproving, models.PhaseApprovalConfirmed)
	if err != nil {
		if !errors.Is(err, ErrCancelled) && !errors.Is(err, ErrTransactionTimeout) && !errors.Is(err, ErrAbandoned) {
			err = newError(ErrApprovalFailed, "The approval could not be sent.", err)
		}
		o.logger.Warnw("approval failed", "token", f.token.Hex(), "phase", f.transfer.Phase, "error", err)
		return nil, err
	}
	f.transfer.ApprovalTxHash = hash
	o.logger.Infow("approval submitted", "token", f.token.Hex(), "amount", f.transfer.AmountSmallestUnit, "txHash", hash)

	return &models.ApprovalOutcome{Status: models.OutcomeApproving, TransactionHash: hash, Transfer: f.transfer}, nil
}

func (o *TransactionOrchestrator) buildTx(ctx context.Context, f *flow, to common.Address, data []byte, gasFallback uint64) provider.TxRequest {
	req := provider.TxRequest{
		From: f.owner.Hex(),
		To:   to.Hex(),
		Data: data,
	}

	gas, err := provider.EstimateGas(ctx, f.p, req)
	if err != nil || gas == 0 {
		o.logger.Warnw("using fallback gas limit", "gas", gasFallback, "error", errors.Join(ErrGasEstimation, err))
		gas = gasFallback
	}
	req.Gas = (*hexutil.Uint64)(&gas)

	price, err := provider.GasPrice(ctx, f.p)
	if err != nil {
		o.logger.Warnw("gas price unavailable, leaving it to the wallet", "error", err)
		return req
	}
	price.Mul(price, big.NewInt(o.cfg.GasPriceMarkupPercent))
	price.Div(price, big.NewInt(100))
	req.GasPrice = (*hexutil.Big)(price)
	return req
}

// submit hands req to the wallet and waits at most timeout for its hash. Once a
// hash exists a watcher owns the transfer and publishes its one terminal event,
// giving the receipt a full timeout of its own counted from the hash.
func (o *TransactionOrchestrator) submit(ctx context.Context, f *flow, req provider.TxRequest, timeout time.Duration, pending, settled models.Phase) (string, error) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := provider.Submit(watchCtx, f.p, req, o.cfg.PollInterval)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case hash := <-sub.Hash():
		if err := f.transfer.Advance(pending); err != nil {
			cancel()
			return "", err
		}
		o.events.Publish(models.BridgeStatusEvent{Status: models.StatusConfirming, Phase: pending, TransactionHash: hash})
		o.watchers.Add(1)
		go o.watch(f.detach(), sub, hash, time.Now().Add(timeout), settled, cancel)
		return hash, nil

	case err := <-sub.Err():
		cancel()
		berr := Classify(err)
		if errors.Is(berr, ErrCancelled) {
			_ = f.transfer.Advance(models.PhaseCancelled)
		}
		return "", berr

	case <-timer.C:
		_ = f.transfer.Advance(models.PhaseTimedOut)
		o.watchers.Add(1)
		go o.adoptLate(sub, cancel, "The transaction was sent after the request timed out. Check the explorer before retrying.")
		return "", newError(ErrTransactionTimeout, "The wallet did not send the transaction in time. It may still be sent; check the wallet before retrying.", nil)

	case <-ctx.Done():
		o.watchers.Add(1)
		go o.adoptLate(sub, cancel, "The transaction was sent after the request was abandoned. Check the explorer before retrying.")
		return "", abandoned(ctx.Err())
	}
}

// watch waits for the receipt of hash until deadline. If the provider fails or
// the deadline passes first, one manual receipt lookup decides the outcome.
func (o *TransactionOrchestrator) watch(f *flow, sub *provider.Submission, hash string, deadline time.Time, settled models.Phase, cancel context.CancelFunc) {
	defer o.watchers.Done()
	defer cancel()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var cause *BridgeError
	select {
	case rcpt := <-sub.Receipt():
		o.settle(f, hash, rcpt, settled)
		return
	case err := <-sub.Err():
		cause = Classify(err)
		o.logger.Warnw("provider failed while waiting for receipt", "txHash", hash, "error", err)
	case <-timer.C:
		cause = newError(ErrTransactionTimeout, "The transaction was not confirmed in time. It may still confirm; check the explorer.", nil)
		o.logger.Warnw("no receipt before deadline", "txHash", hash)
	}
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), receiptLookupTimeout)
	defer stop()
	rcpt, err := provider.TransactionReceipt(ctx, f.p, hash)
	if err == nil && rcpt != nil {
		o.settle(f, hash, rcpt, settled)
		return
	}
	if err != nil {
		o.logger.Warnw("manual receipt lookup failed", "txHash", hash, "error", err)
	}

	if errors.Is(cause, ErrTransactionTimeout) {
		_ = f.transfer.Advance(models.PhaseTimedOut)
	}
	o.events.Publish(models.BridgeStatusEvent{
		Status:          models.StatusFailed,
		Phase:           f.transfer.Phase,
		TransactionHash: hash,
		Error:           cause.Message,
	})
}

func (o *TransactionOrchestrator) settle(f *flow, hash string, rcpt *provider.Receipt, settled models.Phase) {
	if rcpt.Success {
		_ = f.transfer.Advance(settled)
		o.logger.Infow("transaction confirmed", "txHash", hash, "block", rcpt.BlockNumber, "phase", settled)
		o.events.Publish(models.BridgeStatusEvent{
			Status:          models.StatusConfirmed,
			Phase:           settled,
			TransactionHash: hash,
			Receipt:         rcpt.Raw,
		})
		return
	}

	_ = f.transfer.Advance(models.PhaseReverted)
	o.logger.Warnw("transaction reverted", "txHash", hash, "block", rcpt.BlockNumber)
	o.events.Publish(models.BridgeStatusEvent{
		Status:          models.StatusFailed,
		Phase:           models.PhaseReverted,
		TransactionHash: hash,
		Error:           "The transaction was reverted by the contract.",
		Receipt:         rcpt.Raw,
	})
}

// adoptLate covers a caller that stopped waiting before the hash arrived. The
// transaction may still be sent; if so it is reported as failed so it is
// never silently dropped.
func (o *TransactionOrchestrator) adoptLate(sub *provider.Submission, cancel context.CancelFunc, msg string) {
	defer o.watchers.Done()
	defer cancel()

	select {
	case hash := <-sub.Hash():
		o.logger.Warnw("transaction sent after the caller gave up", "txHash", hash)
		o.events.Publish(models.BridgeStatusEvent{
			Status:          models.StatusFailed,
			Phase:           models.PhaseTimedOut,
			TransactionHash: hash,
			Error:           msg,
		})
	case err := <-sub.Err():
		o.logger.Infow("late submission failed", "error", err)
	}
}
