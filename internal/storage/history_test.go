// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := sqlx.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := New(db)
	require.NoError(t, err)
	return h
}

func sample(cmd string, at time.Time) *Invocation {
	return &Invocation{
		Command:     cmd,
		Model:       "llama2",
		Prompt:      "Summarize.\n\n\"text\"",
		Temperature: 0.2,
		Output:      "summary",
		Status:      StatusResolved,
		DurationMS:  1500,
		CreatedAt:   at,
	}
}

func TestRecordAssignsIDAndTime(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	inv := &Invocation{Command: "Summarize", Model: "llama2", Prompt: "p", Status: StatusResolved}
	require.NoError(t, h.Record(ctx, inv))

	assert.Len(t, inv.ID, 36)
	assert.False(t, inv.CreatedAt.IsZero())

	got, err := h.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summarize", got.Command)
	assert.Equal(t, StatusResolved, got.Status)
}

func TestRecordKeepsFields(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := sample("Fix spelling", at)
	inv.Template = "<s>{text}</s>"
	inv.Status = StatusFailed
	inv.Error = "connection refused"
	inv.Output = ""
	require.NoError(t, h.Record(ctx, inv))

	got, err := h.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix spelling", got.Command)
	assert.Equal(t, "<s>{text}</s>", got.Template)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "connection refused", got.Error)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.True(t, at.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
}

func TestListNewestFirst(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, h.Record(ctx, sample(name, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Command)
	assert.Equal(t, "second", all[1].Command)
	assert.Equal(t, "first", all[2].Command)

	two, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "third", two[0].Command)
}

func TestListEmpty(t *testing.T) {
	h := newTestHistory(t)
	got, err := h.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetNotFound(t *testing.T) {
	h := newTestHistory(t)
	_, err := h.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByPrefix(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	a := sample("a", time.Now())
	a.ID = "abcd1111-0000-0000-0000-000000000000"
	b := sample("b", time.Now())
	b.ID = "abcd2222-0000-0000-0000-000000000000"
	require.NoError(t, h.Record(ctx, a))
	require.NoError(t, h.Record(ctx, b))

	got, err := h.Get(ctx, "abcd1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Command)

	_, err = h.Get(ctx, "abcd")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	// Too short to be treated as a prefix.
	_, err = h.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Record(ctx, sample("cmd", base.Add(time.Duration(i)*time.Hour))))
	}

	removed, err := h.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.True(t, left[0].CreatedAt.Equal(base.Add(4*time.Hour)))

	removed, err = h.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), sample("x", time.Now())))
	require.NoError(t, h.Close())

	// Reopening runs migrations again without error and keeps the rows.
	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
