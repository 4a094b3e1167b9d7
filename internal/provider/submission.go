package provider

import (
	"context"
	"time"
)

// Submission tracks one eth_sendTransaction. The hash is observed first, then
// either a receipt or an error; each channel delivers at most one value.
type Submission struct {
	p        Provider
	req      TxRequest
	interval time.Duration

	hash    chan string
	receipt chan *Receipt
	err     chan error
}

// Submit sends req and polls for its receipt until one arrives, polling fails
// or ctx is done. The send itself is detached from ctx: a transaction handed to
// the wallet is never withdrawn because a caller stopped waiting.
func Submit(ctx context.Context, p Provider, req TxRequest, interval time.Duration) *Submission {
	s := &Submission{
		p:        p,
		req:      req,
		interval: interval,
		hash:     make(chan string, 1),
		receipt:  make(chan *Receipt, 1),
		err:      make(chan error, 1),
	}
	go s.run(ctx)
	return s
}

func (s *Submission) Hash() <-chan string { return s.hash }

func (s *Submission) Receipt() <-chan *Receipt { return s.receipt }

func (s *Submission) Err() <-chan error { return s.err }

func (s *Submission) run(ctx context.Context) {
	hash, err := SendTransaction(context.WithoutCancel(ctx), s.p, s.req)
	if err != nil {
		s.err <- err
		return
	}
	s.hash <- hash

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rcpt, err := TransactionReceipt(ctx, s.p, hash)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.err <- err
				return
			}
			if rcpt == nil {
				continue
			}
			s.receipt <- rcpt
			return
		}
	}
}
