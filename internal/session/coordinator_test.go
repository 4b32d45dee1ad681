package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/memstore"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
	"github.com/cwrk-planet/watch-buddy/internal/service"
	"github.com/cwrk-planet/watch-buddy/internal/signaling"
)

const room domain.RoomID = "ABC123"

var clock = time.UnixMilli(1_700_000_000_000).UTC()

type fakeConn struct {
	mu     sync.Mutex
	msgs   []protocol.Message
	full   bool
	closed bool
}

func (c *fakeConn) Send(m protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return presence.ErrBackpressure
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeConn) take() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.msgs
	c.msgs = nil
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.got {
		if e.Type == t {
			n++
		}
	}
	return n
}

type env struct {
	coord    *Coordinator
	rooms    *service.RoomService
	chat     *service.ChatService
	members  *service.MemberService
	registry *presence.Registry
	events   *recorder
}

func newEnv(t *testing.T, override func(*Deps)) *env {
	t.Helper()
	store := memstore.New()
	rec := &recorder{}
	e := &env{
		rooms:    service.NewRoomService(store, rec),
		chat:     service.NewChatService(store),
		members:  service.NewMemberService(store),
		registry: presence.NewRegistry(),
		events:   rec,
	}
	e.rooms.SetClock(func() time.Time { return clock })
	e.chat.SetClock(func() time.Time { return clock })

	d := Deps{
		Rooms:    e.rooms,
		Chat:     e.chat,
		Members:  e.members,
		Presence: e.registry,
		Router:   signaling.NewRouter(e.registry, nil),
		Events:   rec,
	}
	if override != nil {
		override(&d)
	}
	e.coord = NewCoordinator(d)
	e.coord.SetClock(func() time.Time { return clock })
	return e
}

func (e *env) join(t *testing.T, identity string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s := e.coord.Open(room, conn)
	s.Handle(context.Background(), protocol.Join{Member: domain.Member{
		Identity: domain.Identity(identity),
		Name:     strings.ToUpper(identity),
	}})
	if s.State() != Joined {
		t.Fatalf("%s: state = %s after join, frames %v", identity, s.State(), conn.types())
	}
	return s, conn
}

func errorCode(t *testing.T, m protocol.Message) string {
	t.Helper()
	if m.Type != protocol.TypeError {
		t.Fatalf("expected room:error, got %s", m.Type)
	}
	return m.Payload.(protocol.ErrorPayload).Code
}

func TestJoin_FreshRoomSnapshot(t *testing.T) {
	e := newEnv(t, nil)
	_, conn := e.join(t, "alice")

	msgs := conn.take()
	got := make([]string, 0, len(msgs))
	for _, m := range msgs {
		got = append(got, m.Type)
	}
	want := []string{protocol.TypeState, protocol.TypeHistory, protocol.TypeUserList}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("frames = %v, want %v", got, want)
	}

	st := msgs[0].Payload.(domain.PlaybackState)
	if st.Source != nil || st.IsPlaying || st.Time != 0 || st.Theme != domain.DefaultTheme || len(st.Playlist) != 0 {
		t.Fatalf("fresh room state not defaulted: %+v", st)
	}
	if h := msgs[1].Payload.([]domain.ChatEntry); len(h) != 0 {
		t.Fatalf("history = %+v, want empty", h)
	}
	if ms := msgs[2].Payload.([]domain.Member); len(ms) != 1 || ms[0].Identity != "alice" {
		t.Fatalf("user list = %+v", ms)
	}
	if n := e.events.count(events.MemberJoined); n != 1 {
		t.Fatalf("member.joined events = %d", n)
	}
}

func TestPlayThenLateJoinerSeesState(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	connA.take()

	at := 12.5
	a.Handle(context.Background(), protocol.VideoAction{Kind: protocol.ActionPlay, TargetTime: &at})
	if frames := connA.types(); len(frames) != 0 {
		t.Fatalf("sender must not receive its own action, got %v", frames)
	}

	st, err := e.rooms.State(context.Background(), room)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !st.IsPlaying || st.Time != 12.5 || st.LastActionTs != clock.UnixMilli() {
		t.Fatalf("stored state = %+v", st)
	}

	_, connB := e.join(t, "bob")
	first := connB.take()[0]
	if got := first.Payload.(domain.PlaybackState); !got.IsPlaying || got.Time != 12.5 {
		t.Fatalf("late joiner got %+v", got)
	}

	peers := connA.take()
	if len(peers) != 2 || peers[0].Type != protocol.TypeUserList || peers[1].Type != protocol.TypeNewPeer {
		t.Fatalf("existing member frames = %v", peers)
	}
	if m := peers[1].Payload.(domain.Member); m.Identity != "bob" {
		t.Fatalf("new-peer = %+v", m)
	}

	a.Handle(context.Background(), protocol.VideoAction{Kind: protocol.ActionPause})
	relay := connB.take()
	if len(relay) != 1 || relay[0].Type != protocol.TypeVideoAction {
		t.Fatalf("bob frames = %v", relay)
	}
	r := relay[0].Payload.(protocol.VideoActionRelay)
	if r.Kind != protocol.ActionPause || r.From != "alice" || r.Ts != clock.UnixMilli() {
		t.Fatalf("relay = %+v", r)
	}
}

func TestRejoinReplacesConnection(t *testing.T) {
	e := newEnv(t, nil)
	first, oldConn := e.join(t, "alice")
	_, other := e.join(t, "bob")
	oldConn.take()
	other.take()

	conn := &fakeConn{}
	second := e.coord.Open(room, conn)
	second.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "Alice 2", AvatarRef: "new.png"}})
	if second.State() != Joined {
		t.Fatalf("rejoin state = %s", second.State())
	}

	msgs := oldConn.take()
	if len(msgs) != 1 || errorCode(t, msgs[0]) != domain.CodeReplaced || !oldConn.isClosed() {
		t.Fatalf("old connection should get replaced error and be closed, got %v closed=%v", msgs, oldConn.isClosed())
	}

	members := e.registry.ListMembers(room)
	if len(members) != 2 {
		t.Fatalf("members = %+v", members)
	}
	for _, m := range members {
		if m.Identity == "alice" && (m.Name != "Alice 2" || m.AvatarRef != "new.png") {
			t.Fatalf("alice should carry latest profile, got %+v", m)
		}
	}

	other.take()
	first.Close(context.Background())
	if h, ok := e.registry.FindConnection(room, "alice"); !ok || h.Member.Name != "Alice 2" {
		t.Fatal("stale teardown evicted the reconnected member")
	}
	if frames := other.types(); len(frames) != 0 {
		t.Fatalf("stale teardown must not broadcast, got %v", frames)
	}
	if n := e.events.count(events.MemberLeft); n != 0 {
		t.Fatalf("member.left published for stale connection")
	}
}

func TestSignaling(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	connA.take()
	connB.take()

	offer := protocol.Signal{Type: protocol.TypeOffer, To: "bob", Payload: []byte(`{"type":"offer","sdp":"v=0"}`)}
	a.Handle(context.Background(), offer)
	msgs := connB.take()
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeOffer {
		t.Fatalf("bob frames = %v", msgs)
	}
	if d := msgs[0].Payload.(protocol.SignalDelivery); d.From != "alice" {
		t.Fatalf("delivery from = %s", d.From)
	}

	a.Handle(context.Background(), protocol.Signal{Type: protocol.TypeICE, To: "ghost", Payload: []byte(`{"candidate":""}`)})
	if frames := connA.types(); len(frames) != 0 {
		t.Fatalf("routing miss must be silent to the sender, got %v", frames)
	}
	if frames := connB.types(); len(frames) != 0 {
		t.Fatalf("routing miss delivered to bystander: %v", frames)
	}
}

func TestEventsBeforeJoin(t *testing.T) {
	e := newEnv(t, nil)
	conn := &fakeConn{}
	s := e.coord.Open(room, conn)

	s.Handle(context.Background(), protocol.ChatSend{Text: "hi"})
	s.Handle(context.Background(), protocol.Ping{})

	msgs := conn.take()
	if len(msgs) != 2 {
		t.Fatalf("frames = %v", msgs)
	}
	if code := errorCode(t, msgs[0]); code != domain.CodeNotJoined {
		t.Fatalf("code = %s", code)
	}
	if msgs[1].Type != protocol.TypePong {
		t.Fatalf("ping answered with %s", msgs[1].Type)
	}
	if s.State() != Connecting {
		t.Fatalf("state = %s", s.State())
	}
}

type flakyRooms struct {
	RoomStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyRooms) Ensure(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return domain.Room{}, domain.Persistence("roomRepo.Ensure", errors.New("connection refused"))
	}
	return f.RoomStore.Ensure(ctx, id)
}

func TestJoin_EnsureFailureIsRetryable(t *testing.T) {
	var flaky *flakyRooms
	e := newEnv(t, func(d *Deps) {
		flaky = &flakyRooms{RoomStore: d.Rooms, fail: true}
		d.Rooms = flaky
	})

	conn := &fakeConn{}
	s := e.coord.Open(room, conn)
	join := protocol.Join{Member: domain.Member{Identity: "alice", Name: "A"}}
	s.Handle(context.Background(), join)

	msgs := conn.take()
	if len(msgs) != 1 {
		t.Fatalf("frames = %v", msgs)
	}
	p := msgs[0].Payload.(protocol.ErrorPayload)
	if p.Code != domain.CodePersistence || !p.Retryable {
		t.Fatalf("error payload = %+v", p)
	}
	if s.State() != Connecting {
		t.Fatalf("state = %s, want connecting", s.State())
	}
	if _, ok := e.registry.FindConnection(room, "alice"); ok {
		t.Fatal("presence registered despite failed ensure")
	}

	flaky.mu.Lock()
	flaky.fail = false
	flaky.mu.Unlock()
	s.Handle(context.Background(), join)
	if s.State() != Joined {
		t.Fatalf("retry state = %s", s.State())
	}
}

type failingMembers struct{ MemberStore }

func (failingMembers) Join(context.Context, domain.RoomID, domain.Member) error {
	return domain.Persistence("memberRepo.Upsert", errors.New("disk full"))
}

func TestJoin_MemberUpsertFailureUndoesPresence(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.Members = failingMembers{d.Members} })
	conn := &fakeConn{}
	s := e.coord.Open(room, conn)
	s.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "A"}})

	if s.State() != Connecting {
		t.Fatalf("state = %s", s.State())
	}
	if n := len(e.registry.ListMembers(room)); n != 0 {
		t.Fatalf("live members = %d after failed join", n)
	}
	if code := errorCode(t, conn.take()[0]); code != domain.CodePersistence {
		t.Fatalf("code = %s", code)
	}
}

func TestDisconnect(t *testing.T) {
	e := newEnv(t, nil)
	_, connA := e.join(t, "alice")
	b, _ := e.join(t, "bob")
	connA.take()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Close(ctx)
	b.Close(ctx)

	msgs := connA.take()
	if len(msgs) != 2 || msgs[0].Type != protocol.TypeUserList || msgs[1].Type != protocol.TypeRemovePeer {
		t.Fatalf("frames after disconnect = %v", msgs)
	}
	if ms := msgs[0].Payload.([]domain.Member); len(ms) != 1 || ms[0].Identity != "alice" {
		t.Fatalf("user list = %+v", ms)
	}
	if p := msgs[1].Payload.(protocol.PeerRemoved); p.Identity != "bob" {
		t.Fatalf("remove-peer = %+v", p)
	}

	records, err := e.members.List(context.Background(), room)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Identity != "alice" {
		t.Fatalf("durable members = %+v", records)
	}
	if n := e.events.count(events.MemberLeft); n != 1 {
		t.Fatalf("member.left events = %d", n)
	}
	if b.State() != Disconnected {
		t.Fatalf("state = %s", b.State())
	}
}

func TestChatAndReactions(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	b, connB := e.join(t, "bob")
	connA.take()
	connB.take()

	a.Handle(context.Background(), protocol.ChatSend{Text: "hello"})
	for name, c := range map[string]*fakeConn{"alice": connA, "bob": connB} {
		msgs := c.take()
		if len(msgs) != 1 || msgs[0].Type != protocol.TypeChatMessage {
			t.Fatalf("%s frames = %v", name, msgs)
		}
		if entry := msgs[0].Payload.(domain.ChatEntry); entry.Sender.Identity != "alice" || entry.Text != "hello" {
			t.Fatalf("%s got %+v", name, entry)
		}
	}

	b.Handle(context.Background(), protocol.ChatReaction{EntryID: "missing", Emoji: "👍"})
	if frames := connB.types(); len(frames) != 0 {
		t.Fatalf("reaction on missing entry must be silent, got %v", frames)
	}

	history, err := e.chat.History(context.Background(), room)
	if err != nil || len(history) != 1 || len(history[0].Reactions) != 0 {
		t.Fatalf("history = %+v, err %v", history, err)
	}

	b.Handle(context.Background(), protocol.ChatReaction{EntryID: history[0].ID, Emoji: "👍"})
	msgs := connA.take()
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeChatReaction {
		t.Fatalf("alice frames = %v", msgs)
	}
	d := msgs[0].Payload.(protocol.ReactionDelta)
	if d.EntryID != history[0].ID || len(d.Reactions) != 1 || d.Reactions[0] != "👍" {
		t.Fatalf("delta = %+v", d)
	}
}

func TestPlaylistAndThemeBroadcastToAll(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	connA.take()
	connB.take()

	a.Handle(context.Background(), protocol.PlaylistUpdate{Items: []domain.PlaylistItem{{Title: "one", URL: "u1"}}})
	a.Handle(context.Background(), protocol.ThemeUpdate{Theme: "noir"})

	for name, c := range map[string]*fakeConn{"alice": connA, "bob": connB} {
		got := c.types()
		if strings.Join(got, ",") != protocol.TypePlaylistUpdate+","+protocol.TypeThemeUpdate {
			t.Fatalf("%s frames = %v", name, got)
		}
	}

	st, _ := e.rooms.State(context.Background(), room)
	if st.Theme != "noir" || len(st.Playlist) != 1 {
		t.Fatalf("state = %+v", st)
	}
}

func TestSlowConnectionIsClosed(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	connA.take()

	connB.mu.Lock()
	connB.full = true
	connB.mu.Unlock()

	a.Handle(context.Background(), protocol.ChatSend{Text: "hi"})
	if !connB.isClosed() {
		t.Fatal("slow connection should be closed")
	}
	if frames := connA.types(); len(frames) != 1 {
		t.Fatalf("sender should still receive its message, got %v", frames)
	}
}

func TestSecondJoinOnSameSessionRejected(t *testing.T) {
	e := newEnv(t, nil)
	s, conn := e.join(t, "alice")
	conn.take()

	s.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "A"}})
	if code := errorCode(t, conn.take()[0]); code != domain.CodeValidation {
		t.Fatalf("code = %s", code)
	}
}

// gatedMembers parks the next Join until release is closed, then fails it
// with err when set.
type gatedMembers struct {
	MemberStore
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedMembers) arm(err error) (entered, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entered, g.release, g.err = make(chan struct{}), make(chan struct{}), err
	return g.entered, g.release
}

func (g *gatedMembers) Join(ctx context.Context, roomID domain.RoomID, m domain.Member) error {
	g.mu.Lock()
	entered, release, err := g.entered, g.release, g.err
	g.entered, g.release, g.err = nil, nil, nil
	g.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}
	if err != nil {
		return err
	}
	return g.MemberStore.Join(ctx, roomID, m)
}

func newGatedEnv(t *testing.T) (*env, *gatedMembers) {
	t.Helper()
	var gate *gatedMembers
	e := newEnv(t, func(d *Deps) {
		gate = &gatedMembers{MemberStore: d.Members}
		d.Members = gate
	})
	return e, gate
}

func hasType(msgs []protocol.Message, typ string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func TestRejoinClosedMidJoinRetiresOldConnection(t *testing.T) {
	e, gate := newGatedEnv(t)
	old, oldConn := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	oldConn.take()

	entered, release := gate.arm(nil)
	s2 := e.coord.Open(room, &fakeConn{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s2.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "A2"}})
	}()
	<-entered
	s2.Close(context.Background())
	close(release)
	<-done

	if !oldConn.isClosed() {
		t.Fatal("displaced connection must be closed when the rejoin is abandoned")
	}
	if code := errorCode(t, oldConn.take()[0]); code != domain.CodeReplaced {
		t.Fatalf("code = %s", code)
	}
	if _, ok := e.registry.FindConnection(room, "alice"); ok {
		t.Fatal("alice still live after both connections went away")
	}
	records, err := e.members.List(context.Background(), room)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Identity != "bob" {
		t.Fatalf("durable members = %+v", records)
	}

	// the old transport now tears down; it is stale and announces nothing
	old.Close(context.Background())
	if n := hasType(connB.take(), protocol.TypeRemovePeer); n != 1 {
		t.Fatalf("bob got %d remove-peer frames, want 1", n)
	}
}

func TestFailedRejoinRestoresLiveConnection(t *testing.T) {
	e, gate := newGatedEnv(t)
	_, oldConn := e.join(t, "alice")
	oldConn.take()

	_, release := gate.arm(domain.Persistence("memberRepo.Upsert", errors.New("disk full")))
	close(release)
	conn2 := &fakeConn{}
	s2 := e.coord.Open(room, conn2)
	s2.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "A2"}})

	if s2.State() != Connecting {
		t.Fatalf("state = %s", s2.State())
	}
	h, ok := e.registry.FindConnection(room, "alice")
	if !ok || h.Member.Name != "ALICE" {
		t.Fatalf("original handle not restored: %+v", h)
	}
	if oldConn.isClosed() || len(oldConn.take()) != 0 {
		t.Fatal("original connection must not notice a failed rejoin")
	}
}

func TestFailedRejoinAfterOldConnectionLeftAnnouncesDeparture(t *testing.T) {
	e, gate := newGatedEnv(t)
	old, _ := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	connB.take()

	entered, release := gate.arm(domain.Persistence("memberRepo.Upsert", errors.New("disk full")))
	conn2 := &fakeConn{}
	s2 := e.coord.Open(room, conn2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s2.Handle(context.Background(), protocol.Join{Member: domain.Member{Identity: "alice", Name: "A2"}})
	}()
	<-entered
	old.Close(context.Background())
	close(release)
	<-done

	if s2.State() != Connecting {
		t.Fatalf("state = %s", s2.State())
	}
	if code := errorCode(t, conn2.take()[0]); code != domain.CodePersistence {
		t.Fatalf("code = %s", code)
	}
	if _, ok := e.registry.FindConnection(room, "alice"); ok {
		t.Fatal("closed connection was resurrected into presence")
	}
	msgs := connB.take()
	if hasType(msgs, protocol.TypeRemovePeer) != 1 || hasType(msgs, protocol.TypeUserList) != 1 {
		t.Fatalf("bob frames = %v", msgs)
	}
	records, err := e.members.List(context.Background(), room)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Identity != "bob" {
		t.Fatalf("durable members = %+v", records)
	}
	if n := e.events.count(events.MemberLeft); n != 1 {
		t.Fatalf("member.left events = %d", n)
	}
}

type countingRooms struct {
	RoomStore
	mu      sync.Mutex
	touches int
}

func (c *countingRooms) Touch(ctx context.Context, id domain.RoomID) error {
	c.mu.Lock()
	c.touches++
	c.mu.Unlock()
	return c.RoomStore.Touch(ctx, id)
}

func (c *countingRooms) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touches
}

type failingChat struct{ ChatStore }

func (failingChat) Send(context.Context, domain.RoomID, domain.Member, string) (domain.ChatEntry, error) {
	return domain.ChatEntry{}, domain.Persistence("chatRepo.Append", errors.New("timeout"))
}

func (failingChat) React(context.Context, domain.RoomID, string, string) (domain.ChatEntry, bool, error) {
	return domain.ChatEntry{}, false, domain.Persistence("chatRepo.AddReaction", errors.New("timeout"))
}

func TestChatFailureStillTouchesRoom(t *testing.T) {
	var rooms *countingRooms
	e := newEnv(t, func(d *Deps) {
		rooms = &countingRooms{RoomStore: d.Rooms}
		d.Rooms = rooms
		d.Chat = failingChat{d.Chat}
	})
	a, conn := e.join(t, "alice")
	conn.take()
	before := rooms.count()

	a.Handle(context.Background(), protocol.ChatSend{Text: "hi"})
	a.Handle(context.Background(), protocol.ChatReaction{EntryID: "x", Emoji: "👍"})

	if got := rooms.count() - before; got != 2 {
		t.Fatalf("touches = %d, want 2", got)
	}
	for _, m := range conn.take() {
		if code := errorCode(t, m); code != domain.CodePersistence {
			t.Fatalf("code = %s", code)
		}
	}
}

func TestEventAfterReapRevivesRoom(t *testing.T) {
	e := newEnv(t, nil)
	a, connA := e.join(t, "alice")
	_, connB := e.join(t, "bob")
	connA.take()
	connB.take()

	if n, err := e.rooms.ReapBefore(context.Background(), clock.Add(time.Minute)); err != nil || n != 1 {
		t.Fatalf("reap = %d, %v", n, err)
	}

	at := 3.0
	a.Handle(context.Background(), protocol.VideoAction{Kind: protocol.ActionSeek, TargetTime: &at})
	if msgs := connA.take(); len(msgs) != 0 {
		t.Fatalf("sender got %v", msgs)
	}
	if msgs := connB.take(); len(msgs) != 1 || msgs[0].Type != protocol.TypeVideoAction {
		t.Fatalf("bob frames = %v", msgs)
	}

	st, err := e.rooms.State(context.Background(), room)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Time != 3 {
		t.Fatalf("time = %v", st.Time)
	}
	records, err := e.members.List(context.Background(), room)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("durable members after revive = %+v", records)
	}
}
