package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

// Balance returns the holder's balance of token. Unknown holders have a zero
// balance.
func (s *Store) Balance(ctx context.Context, token, holder domain.Identity) (amount.Amount, error) {
	return balanceOf(ctx, s.conn(ctx), token, holder)
}

// Transfer moves amt of token from one holder to another in a single
// transaction, or in the caller's transaction under Atomic. A zero amount is a no-op; a negative amount or a balance
// below amt fails without partial effect.
func (s *Store) Transfer(ctx context.Context, token, from, to domain.Identity, amt amount.Amount) error {
	switch amt.Sign() {
	case 0:
		return nil
	case -1:
		return fmt.Errorf("%w: negative transfer amount %s", domain.ErrInvalidParams, amt)
	}
	if from == to {
		return nil
	}

	return s.inTx(ctx, func(q querier) error {
		fromBal, err := balanceOf(ctx, q, token, from)
		if err != nil {
			return err
		}
		if fromBal.Cmp(amt) < 0 {
			return fmt.Errorf("%w: %s holds %s, needs %s", domain.ErrInsufficientBalance, from, fromBal, amt)
		}
		toBal, err := balanceOf(ctx, q, token, to)
		if err != nil {
			return err
		}
		credited, ok := toBal.CheckedAdd(amt)
		if !ok {
			return fmt.Errorf("%w: credit to %s", domain.ErrArithmeticOverflow, to)
		}
		if err := setBalance(ctx, q, token, from, fromBal.SaturatingSub(amt)); err != nil {
			return err
		}
		return setBalance(ctx, q, token, to, credited)
	})
}

// Mint credits amt of token to holder. Used to fund accounts outside the
// stream lifecycle.
func (s *Store) Mint(ctx context.Context, token, holder domain.Identity, amt amount.Amount) error {
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative mint amount %s", domain.ErrInvalidParams, amt)
	}
	return s.inTx(ctx, func(q querier) error {
		bal, err := balanceOf(ctx, q, token, holder)
		if err != nil {
			return err
		}
		next, ok := bal.CheckedAdd(amt)
		if !ok {
			return fmt.Errorf("%w: mint to %s", domain.ErrArithmeticOverflow, holder)
		}
		return setBalance(ctx, q, token, holder, next)
	})
}

func balanceOf(ctx context.Context, q querier, token, holder domain.Identity) (amount.Amount, error) {
	var bal amount.Amount
	err := q.QueryRowContext(ctx, `
		SELECT amount FROM balances WHERE token = ? AND holder = ?
	`, string(token), string(holder)).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return amount.Zero, nil
	}
	if err != nil {
		return amount.Zero, fmt.Errorf("balance of %s: %w", holder, err)
	}
	return bal, nil
}

func setBalance(ctx context.Context, q querier, token, holder domain.Identity, bal amount.Amount) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (token, holder, amount) VALUES (?, ?, ?)
		ON CONFLICT(token, holder) DO UPDATE SET amount = excluded.amount
	`, string(token), string(holder), bal)
	if err != nil {
		return fmt.Errorf("set balance of %s: %w", holder, err)
	}
	return nil
}
