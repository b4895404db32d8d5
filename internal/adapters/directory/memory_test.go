package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	d.AddUser(&domain.User{ID: "42", Username: "marcel"})
	d.SetFriends("42", []domain.UserID{"7", "9"})
	d.AddServerMember("s1", "42")
	d.AddServerMember("s1", "7")

	t.Run("resolve by id", func(t *testing.T) {
		u, err := d.ResolveUser(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "marcel", u.Username)
	})

	t.Run("resolve by username", func(t *testing.T) {
		u, err := d.ResolveUsername(ctx, "marcel")
		require.NoError(t, err)
		assert.Equal(t, domain.UserID("42"), u.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := d.ResolveUser(ctx, "ghost")
		require.ErrorIs(t, err, core.ErrUserNotFound)
	})

	t.Run("friends", func(t *testing.T) {
		friends, err := d.FriendIDs(ctx, "42")
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.UserID{"7", "9"}, friends)
	})

	t.Run("server membership both directions", func(t *testing.T) {
		servers, err := d.ServerMembershipIDs(ctx, "42")
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.ServerID{"s1"}, servers)

		members, err := d.ServerMemberIDs(ctx, "s1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.UserID{"42", "7"}, members)
	})

	t.Run("resolved user is a copy", func(t *testing.T) {
		u, err := d.ResolveUser(ctx, "42")
		require.NoError(t, err)
		u.Username = "mutated"
		again, err := d.ResolveUser(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "marcel", again.Username)
	})
}
