package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/store"
	"github.com/vovakirdan/chatterbox/internal/testutil"
)

func TestPrivateMessageGoesToTargetAndSenderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setNick(t, "lobby", tagAlice, "alice")
	f.setNick(t, "lobby", tagBob, "bob")

	room := f.subscribe(t, store.ChannelKey("lobby"))
	alice := f.subscribe(t, store.PrivateKey(tagAlice))
	bob := f.subscribe(t, store.PrivateKey(tagBob))
	carol := f.subscribe(t, store.PrivateKey(tagCarol))

	err := f.d.Post(ctx, Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeMsg, Message: "psst <b>hi</b>", Target: "alice"})
	require.NoError(t, err)

	for _, sub := range []*bus.Subscription{alice, bob} {
		env := mustEnvelope(t, sub, bus.ModeMsg)
		require.Equal(t, "psst hi", env.Message)
		require.Equal(t, "bob", env.Sender)
		require.Equal(t, "alice", env.Target)
	}
	testutil.RequireNoReceive(t, room.Envelopes(), quiet, "private message must not reach the room")
	testutil.RequireNoReceive(t, carol.Envelopes(), quiet, "private message must not reach bystanders")
}

func TestPrivateMessageToPunctuatedNick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.subscribe(t, store.ChannelKey("lobby"))
	alice := f.subscribe(t, store.PrivateKey(tagAlice))

	require.NoError(t, f.d.Post(ctx, Command{Room: "lobby", Tag: tagAlice, Mode: bus.ModeNick, Message: "O'Brien"}))
	notice := mustEnvelope(t, lobby, bus.ModeNick)
	require.Equal(t, tagAlice[:8]+" is now known as O'Brien", notice.Message)

	err := f.d.Post(ctx, Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeMsg, Message: "hi", Target: "O'Brien"})
	require.NoError(t, err)

	env := mustEnvelope(t, alice, bus.ModeMsg)
	require.Equal(t, "O'Brien", env.Target)
	require.Equal(t, "hi", env.Message)
}

func TestPrivateMessageToUnknownTargetPublishesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setNick(t, "lobby", tagAlice, "alice")
	all := f.catchAll(t)

	err := f.d.Post(ctx, Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeMsg, Message: "boo", Target: "ghost"})
	require.ErrorIs(t, err, ErrTargetNotFound)
	testutil.RequireNoReceive(t, all, quiet, "no envelope may be published for an unknown target")
}

func TestPrivateMessageRequiresTarget(t *testing.T) {
	f := newFixture(t)
	all := f.catchAll(t)

	err := f.d.Post(context.Background(), Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeMsg, Message: "boo"})
	require.ErrorIs(t, err, ErrTargetRequired)
	testutil.RequireNoReceive(t, all, quiet, "nothing published without a target")
}

func TestPrivateMessageTargetInOtherRoomNotFound(t *testing.T) {
	f := newFixture(t)

	f.setNick(t, "kitchen", tagAlice, "alice")

	err := f.d.Post(context.Background(), Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeMsg, Message: "hi", Target: "alice"})
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRoomMessagesStayInRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.subscribe(t, store.ChannelKey("lobby"))
	kitchen := f.subscribe(t, store.ChannelKey("kitchen"))

	for _, mode := range []string{bus.ModeMessage, bus.ModeAction} {
		err := f.d.Post(ctx, Command{Room: "lobby", Tag: tagAlice, Mode: mode, Message: "see http://example.com"})
		require.NoError(t, err, mode)

		env := mustEnvelope(t, lobby, mode)
		require.Equal(t, `see <a href="http://example.com" target="_blank">http://example.com</a>`, env.Message)
		require.Equal(t, tagAlice[:8], env.Sender)
	}
	testutil.RequireNoReceive(t, kitchen.Envelopes(), quiet, "other rooms must not see lobby posts")
}

func TestNickChangeAnnounced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.subscribe(t, store.ChannelKey("lobby"))

	require.NoError(t, f.d.Post(ctx, Command{Room: "lobby", Tag: tagAlice, Mode: bus.ModeNick, Message: "alice"}))

	env := mustEnvelope(t, lobby, bus.ModeNick)
	require.Equal(t, NoticeSender, env.Sender)
	require.Equal(t, tagAlice[:8]+" is now known as alice", env.Message)

	nicks, err := f.nicks.List(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, tagAlice, nicks["alice"])
}

// The conflict alert is broadcast to the whole room, not only to the requester.
func TestNickConflictAlertIsRoomBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setNick(t, "lobby", tagAlice, "alice")
	f.setNick(t, "lobby", tagBob, "bob")

	lobby := f.subscribe(t, store.ChannelKey("lobby"))
	bobPrivate := f.subscribe(t, store.PrivateKey(tagBob))

	require.NoError(t, f.d.Post(ctx, Command{Room: "lobby", Tag: tagBob, Mode: bus.ModeNick, Message: "alice"}),
		"a conflict must not fail the request")

	env := mustEnvelope(t, lobby, bus.ModeAlert)
	require.Equal(t, "Nick in use!", env.Message)
	require.Equal(t, NoticeSender, env.Sender)
	testutil.RequireNoReceive(t, bobPrivate.Envelopes(), quiet, "alert is not sent privately")

	name, err := f.nicks.GetOrAssign(ctx, "lobby", tagBob)
	require.NoError(t, err)
	require.Equal(t, "bob", name)
}

func TestEmptyNickIsIgnored(t *testing.T) {
	f := newFixture(t)
	all := f.catchAll(t)

	require.NoError(t, f.d.Post(context.Background(), Command{Room: "lobby", Tag: tagAlice, Mode: bus.ModeNick, Message: "<i></i>"}))
	testutil.RequireNoReceive(t, all, quiet, "empty nick publishes nothing")
}

// The names listing is broadcast to the whole room, not only to the requester.
func TestNamesIsRoomBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setNick(t, "lobby", tagBob, "bob")
	f.setNick(t, "lobby", tagAlice, "alice")
	lobby := f.subscribe(t, store.ChannelKey("lobby"))

	require.NoError(t, f.d.Post(ctx, Command{Room: "lobby", Tag: tagCarol, Mode: bus.ModeNames}))

	env := mustEnvelope(t, lobby, bus.ModeNames)
	require.Equal(t, []any{tagCarol[:8], "alice", "bob"}, env.Message)
}

func TestUnknownModeSucceedsSilently(t *testing.T) {
	f := newFixture(t)
	all := f.catchAll(t)

	require.NoError(t, f.d.Post(context.Background(), Command{Room: "lobby", Tag: tagAlice, Mode: "topic", Message: "x"}))
	testutil.RequireNoReceive(t, all, quiet, "unknown mode publishes nothing")
}

func TestPostRefreshesHeartbeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setNick(t, "lobby", tagAlice, "alice")
	f.mr.FastForward(80 * time.Second)

	require.NoError(t, f.d.Post(ctx, Command{Room: "lobby", Tag: tagAlice, Mode: "unknown"}))
	f.mr.FastForward(80 * time.Second)

	nicks, err := f.nicks.List(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, tagAlice, nicks["alice"], "alice should be alive after the heartbeat")
}

func TestOpenAnnouncesJoinAndCoversPrivateKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.subscribe(t, store.ChannelKey("lobby"))

	sub, err := f.d.Open(ctx, "lobby", tagAlice)
	require.NoError(t, err)
	defer sub.Close()

	for _, s := range []*bus.Subscription{sub, other} {
		env := mustEnvelope(t, s, bus.ModeJoin)
		require.Equal(t, tagAlice[:8]+" connected.", env.Message)
		require.Equal(t, NoticeSender, env.Sender)
	}

	require.NoError(t, f.bus.Publish(ctx, store.PrivateKey(tagAlice), bus.Envelope{Mode: bus.ModeMsg, Message: "direct"}))
	mustEnvelope(t, sub, bus.ModeMsg)

	require.Equal(t, 90*time.Second, f.mr.TTL(store.NickKey("lobby", tagAlice)), "open refreshes the nick")
}

func TestStoreUnavailableFailsPost(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	err := f.d.Post(context.Background(), Command{Room: "lobby", Tag: tagAlice, Mode: bus.ModeMessage, Message: "hi"})
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.Equal(t, ErrCodeStoreUnavailable, Classify(err).Code)
}
