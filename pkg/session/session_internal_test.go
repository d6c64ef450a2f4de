package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-formtree/pkg/tree"
)

func TestSettleBreaksOnInvariantViolation(t *testing.T) {
	s := &Session{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	if err := s.settle(nil); err != nil {
		t.Fatalf("settle(nil) = %v", err)
	}
	if err := s.settle(tree.ErrNotField); !errors.Is(err, tree.ErrNotField) || s.Err() != nil {
		t.Fatalf("ordinary errors must not break the session, got %v", err)
	}

	err := s.settle(fmt.Errorf("renumber: %w", tree.ErrInvariant))
	if !errors.Is(err, ErrBroken) || !errors.Is(err, tree.ErrInvariant) {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(s.begin(), ErrBroken) {
		t.Fatalf("a broken session must refuse mutations")
	}
	if err := s.SetValue(nil, "x"); !errors.Is(err, ErrBroken) {
		t.Fatalf("SetValue on broken session = %v", err)
	}
}
