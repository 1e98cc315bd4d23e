package packs

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/vibescrow/backend/internal/contract"
)

var ErrRandomnessTimeout = errors.New("randomness not fulfilled in time, try again later")

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 30
)

type pollStatus int

const (
	pollWaiting pollStatus = iota
	pollResolved
	pollExhausted
)

// poll is the attempt counter behind Poller.Wait.
type poll struct {
	attempt     int
	maxAttempts int
	status      pollStatus
	last        *contract.TokenRarity
}

// observe records one read. A failed read counts as unresolved.
func (p *poll) observe(r *contract.TokenRarity, err error) pollStatus {
	p.attempt++
	if err == nil && r != nil && r.Resolved() {
		p.status, p.last = pollResolved, r
		return p.status
	}
	if p.attempt >= p.maxAttempts {
		p.status = pollExhausted
	}
	return p.status
}

// RarityReader reads on-chain rarity for a token.
type RarityReader interface {
	GetTokenRarity(ctx context.Context, tokenID *big.Int) (*contract.TokenRarity, error)
}

// Poller waits for a token's randomness with a fixed interval and attempt
// budget.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// OnAttempt, if set, is called after every read.
	OnAttempt func(attempt int, err error)
}

func (p Poller) withDefaults() Poller {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	return p
}

// Wait reads rarity once per interval until it resolves. It returns
// ErrRandomnessTimeout after MaxAttempts unresolved reads.
func (p Poller) Wait(ctx context.Context, r RarityReader, tokenID *big.Int) (*contract.TokenRarity, error) {
	p = p.withDefaults()
	st := &poll{maxAttempts: p.MaxAttempts}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		rarity, err := r.GetTokenRarity(ctx, tokenID)
		status := st.observe(rarity, err)
		if p.OnAttempt != nil {
			p.OnAttempt(st.attempt, err)
		}

		switch status {
		case pollResolved:
			return st.last, nil
		case pollExhausted:
			return nil, ErrRandomnessTimeout
		}
		timer.Reset(p.Interval)
	}
}
