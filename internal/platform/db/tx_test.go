package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, "not a tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil for wrong type, got %v", tx)
	}
}

func TestWithTx_NestedReusesOuter(t *testing.T) {
	// A context that already carries a tx short-circuits to fn.
	sentinel := errors.New("inner")
	ctx := context.WithValue(context.Background(), txKey{}, fakeTx{})
	err := WithTx(ctx, nil, func(inner context.Context) error {
		if TxFromContext(inner) == nil {
			t.Error("expected outer tx in inner context")
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestWithTx_NoPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error without a pool")
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestNewPool_BadURL(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "postgres://%zz"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.HasPrefix(err.Error(), "parse database url") {
		t.Errorf("unexpected error: %v", err)
	}
}

// fakeTx satisfies pgx.Tx for context plumbing tests only.
type fakeTx struct{ pgx.Tx }
