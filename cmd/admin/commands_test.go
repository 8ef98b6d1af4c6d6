package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/embygate/embygate/internal/store"
	"github.com/embygate/embygate/internal/token"
)

func TestIssuePrintsCodes(t *testing.T) {
	var out bytes.Buffer
	g := &Globals{AdminList: []int64{7}, LogLevel: "error", out: &out}

	require.NoError(t, issue(context.Background(), g, store.NewMemory(), 7, token.KindWhitelist, 3))

	codes := strings.Fields(out.String())
	require.Len(t, codes, 3)
	for _, code := range codes {
		require.True(t, strings.HasPrefix(code, "epw-"), code)
	}
}

func TestIssueRequiresAdministrator(t *testing.T) {
	g := &Globals{AdminList: []int64{7}, LogLevel: "error", out: &bytes.Buffer{}}

	require.Error(t, issue(context.Background(), g, store.NewMemory(), 8, token.KindRegister, 1))
}

func TestQuotaSetAndShow(t *testing.T) {
	var out bytes.Buffer
	g := &Globals{AdminList: []int64{7}, LogLevel: "error", out: &out}
	st := store.NewMemory()
	now := time.Now()

	cmd := &QuotaSetCmd{Operator: 7, Seats: 5, OpenFor: time.Hour}
	require.NoError(t, cmd.apply(context.Background(), g, st, now))
	require.Contains(t, out.String(), "remaining seats: 5")

	out.Reset()
	require.NoError(t, (&QuotaSetCmd{Operator: 7, Seats: -1, Close: true}).apply(context.Background(), g, st, now))
	require.Contains(t, out.String(), "open until:      closed")

	out.Reset()
	require.NoError(t, showQuota(context.Background(), g, st))
	require.Contains(t, out.String(), "remaining seats: 5")

	require.Error(t, (&QuotaSetCmd{Operator: 7, Seats: -1}).apply(context.Background(), g, st, now))
}

func TestTokenSignsAssertion(t *testing.T) {
	var out bytes.Buffer
	g := &Globals{out: &out}

	cmd := &TokenCmd{Subject: 42, TTL: time.Minute, SigningKey: strings.Repeat("k", 32)}
	require.NoError(t, cmd.Run(g))
	require.Equal(t, 2, strings.Count(strings.TrimSpace(out.String()), "."))
}
