package convstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(slog.Default(), client), mr
}

func TestSetDisposableReplacesEventSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetDisposable(ctx, 1, 10, "upload_photo", []string{"photo", "file"}, 0))
	require.NoError(t, store.SetDisposable(ctx, 1, 10, "upload_photo", []string{"url"}, 0))

	reg, ok, err := store.GetDisposable(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "upload_photo", reg.Handler)
	assert.ElementsMatch(t, []string{"url"}, reg.Events)
}

func TestDisposableLifecycle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetDisposable(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetDisposable(ctx, 1, 10, "create_folder", []string{"text"}, time.Minute))

	reg, ok, err := store.GetDisposable(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "create_folder", reg.Handler)

	// Other (user, chat) pairs are isolated.
	_, ok, err = store.GetDisposable(ctx, 1, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ClearDisposable(ctx, 1, 10))
	_, ok, err = store.GetDisposable(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	// TTL expiry removes the registration without a sweep.
	require.NoError(t, store.SetDisposable(ctx, 1, 10, "create_folder", []string{"text"}, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err = store.GetDisposable(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeAndList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Subscribe(ctx, 1, 10, "logger", []string{"photo", "file"}, 0))
	require.NoError(t, store.Subscribe(ctx, 1, 10, "auditor", []string{"url"}, 0))

	regs, err := store.ListSubscribed(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, regs, 2)

	byName := map[string][]string{}
	for _, reg := range regs {
		byName[reg.Handler] = reg.Events
	}
	assert.ElementsMatch(t, []string{"photo", "file"}, byName["logger"])
	assert.ElementsMatch(t, []string{"url"}, byName["auditor"])

	// Re-subscribing replaces, never merges.
	require.NoError(t, store.Subscribe(ctx, 1, 10, "logger", []string{"voice"}, 0))
	regs, err = store.ListSubscribed(ctx, 1, 10)
	require.NoError(t, err)
	for _, reg := range regs {
		if reg.Handler == "logger" {
			assert.ElementsMatch(t, []string{"voice"}, reg.Events)
		}
	}

	require.NoError(t, store.Unsubscribe(ctx, 1, 10, "auditor"))
	regs, err = store.ListSubscribed(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "logger", regs[0].Handler)
}

func TestListSubscribedCollectsDanglingEntries(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Subscribe(ctx, 1, 10, "logger", []string{"photo"}, time.Minute))
	require.NoError(t, store.Subscribe(ctx, 1, 10, "auditor", []string{"url"}, 0))

	// Expire logger's event set; its index entry is now dangling.
	mr.FastForward(2 * time.Minute)

	regs, err := store.ListSubscribed(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "auditor", regs[0].Handler)

	// The dangling index entry was deleted, not just skipped.
	assert.False(t, mr.Exists("stateful_chat:user:1:chat:10:subscribed_handler:logger:events"))
	members, err := mr.SMembers("stateful_chat:user:1:chat:10:subscribed_handlers")
	require.NoError(t, err)
	assert.NotContains(t, members, "logger")
}

func TestCustomDataScopes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetData(ctx, ScopeUser, 1, 0, "lang", "en", 0))
	require.NoError(t, store.SetData(ctx, ScopeChat, 0, 10, "mode", "quiet", 0))
	require.NoError(t, store.SetData(ctx, ScopeUserChat, 1, 10, "pending", "x", time.Minute))

	value, ok, err := store.GetData(ctx, ScopeUser, 1, 0, "lang")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", value)

	// Same key under a different scope is a different entry.
	_, ok, err = store.GetData(ctx, ScopeUserChat, 1, 10, "lang")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteData(ctx, ScopeUser, 1, 0, "lang"))
	_, ok, err = store.GetData(ctx, ScopeUser, 1, 0, "lang")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisabledStore(t *testing.T) {
	var store *Store

	assert.False(t, store.Enabled())
	assert.ErrorIs(t, store.SetDisposable(context.Background(), 1, 10, "h", []string{"text"}, 0), ErrDisabled)
	_, _, err := store.GetDisposable(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrDisabled)
}
