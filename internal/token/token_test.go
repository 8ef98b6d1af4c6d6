package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewCodeMatchesPattern(t *testing.T) {
	for _, kind := range []Kind{KindRegister, KindWhitelist} {
		code := NewCode(kind)
		if !strings.HasPrefix(code, kind.Prefix()+"-") {
			t.Fatalf("code %q lacks prefix for %s", code, kind)
		}
		got, err := ValidateCode(code)
		if err != nil {
			t.Fatalf("validate %q: %v", code, err)
		}
		if got != kind {
			t.Fatalf("expected %s, got %s", kind, got)
		}
	}
	if NewCode(KindRegister) == NewCode(KindRegister) {
		t.Fatalf("codes must be unique")
	}
}

func TestValidateCodeRejectsMalformed(t *testing.T) {
	for _, code := range []string{"", "epr-", "epx-abc", "epr_abc", "epr-ab-c", "EPR-abc", " epr-abc", "epr-abc!"} {
		if _, err := ValidateCode(code); !errors.Is(err, ErrInvalidOrUsedCode) {
			t.Fatalf("expected %q to be rejected, got %v", code, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Whitelist"); err != nil || k != KindWhitelist {
		t.Fatalf("unexpected %v %v", k, err)
	}
	if _, err := ParseKind("vip"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func sequentialCodes() func(Kind) string {
	n := 0
	return func(k Kind) string {
		n++
		return k.Prefix() + "-code" + strings.Repeat("x", n)
	}
}

func TestIssueClampsAndKeepsOrder(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository(), sequentialCodes(), nil)
	ctx := context.Background()

	tokens, err := reg.Issue(ctx, 1, KindRegister, 50)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tokens) != MaxBatch {
		t.Fatalf("expected %d tokens, got %d", MaxBatch, len(tokens))
	}
	for i := 1; i < len(tokens); i++ {
		if tokens[i].ID <= tokens[i-1].ID {
			t.Fatalf("tokens out of creation order at %d", i)
		}
	}

	one, err := reg.Issue(ctx, 1, KindWhitelist, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(one) != 1 || one[0].Kind != KindWhitelist || one[0].Used {
		t.Fatalf("unexpected tokens %+v", one)
	}
}

func TestRedeemMarksUsedOnce(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg := NewRegistry(repo, nil, func() time.Time { return now })
	ctx := context.Background()

	tokens, err := reg.Issue(ctx, 1, KindRegister, 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := tokens[0].Code

	redeemed, err := reg.Redeem(ctx, code, 7, nil)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !redeemed.Used || redeemed.RedeemerID != 7 || !redeemed.UsedAt.Equal(now) {
		t.Fatalf("unexpected token %+v", redeemed)
	}

	if _, err := reg.Redeem(ctx, code, 8, nil); !errors.Is(err, ErrInvalidOrUsedCode) {
		t.Fatalf("expected ErrInvalidOrUsedCode, got %v", err)
	}
	stored, _ := repo.FindByCode(ctx, code)
	if stored.RedeemerID != 7 {
		t.Fatalf("redeemer overwritten: %+v", stored)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository(), nil, nil)
	if _, err := reg.Redeem(context.Background(), "epr-missing", 1, nil); !errors.Is(err, ErrInvalidOrUsedCode) {
		t.Fatalf("expected ErrInvalidOrUsedCode, got %v", err)
	}
}

func TestRedeemCheckFailureLeavesTokenUnused(t *testing.T) {
	repo := NewMemoryRepository()
	reg := NewRegistry(repo, nil, nil)
	ctx := context.Background()
	tokens, _ := reg.Issue(ctx, 1, KindWhitelist, 1)

	denied := errors.New("denied")
	_, err := reg.Redeem(ctx, tokens[0].Code, 2, func(tok Token) error {
		if tok.Kind != KindWhitelist {
			t.Fatalf("check saw wrong kind %s", tok.Kind)
		}
		return denied
	})
	if !errors.Is(err, denied) {
		t.Fatalf("expected check error, got %v", err)
	}
	stored, _ := repo.FindByCode(ctx, tokens[0].Code)
	if stored.Used {
		t.Fatalf("token used despite failed check")
	}
}
