package conversation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sobre/internal/conversation"
	"sobre/internal/crypto"
	"sobre/internal/domain"
	"sobre/internal/keyring"
	"sobre/internal/store"
)

// fakeBackend plays directory, message store and relay for any number of
// parties in one test.
type fakeBackend struct {
	mu     sync.Mutex
	keys   map[domain.Identity]string
	msgs   []domain.Message
	online map[domain.Identity]*fakeTransport

	registerErr error
	fetchErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		keys:   make(map[domain.Identity]string),
		online: make(map[domain.Identity]*fakeTransport),
	}
}

func (b *fakeBackend) RegisterPublicKey(_ context.Context, id domain.Identity, exported string) error {
	if b.registerErr != nil {
		return b.registerErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[id] = exported
	return nil
}

func (b *fakeBackend) FetchPublicKey(_ context.Context, id domain.Identity) (string, error) {
	if b.fetchErr != nil {
		return "", b.fetchErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exported, ok := b.keys[id]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return exported, nil
}

func (b *fakeBackend) Contacts(_ context.Context, id domain.Identity) ([]domain.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Identity
	seen := map[domain.Identity]bool{}
	for _, m := range b.msgs {
		other := m.SenderID
		if m.SenderID == id {
			other = m.ReceiverID
		} else if m.ReceiverID != id {
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out, nil
}

func (b *fakeBackend) Messages(_ context.Context, id, other domain.Identity) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Message
	for _, m := range b.msgs {
		if (m.SenderID == id && m.ReceiverID == other) || (m.SenderID == other && m.ReceiverID == id) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *fakeBackend) storeMessage(m domain.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	receiver := b.online[m.ReceiverID]
	b.mu.Unlock()
	if receiver != nil {
		receiver.inbox <- m
	}
}

type fakeTransport struct {
	backend *fakeBackend
	self    domain.Identity
	inbox   chan domain.Message

	mu    sync.Mutex
	state domain.ConnState
}

func newFakeTransport(b *fakeBackend, self domain.Identity) *fakeTransport {
	return &fakeTransport{backend: b, self: self, inbox: make(chan domain.Message, 16)}
}

func (t *fakeTransport) Connect(context.Context, domain.Identity) error {
	t.mu.Lock()
	t.state = domain.Connected
	t.mu.Unlock()
	t.backend.mu.Lock()
	t.backend.online[t.self] = t
	t.backend.mu.Unlock()
	return nil
}

func (t *fakeTransport) Send(_ context.Context, msg domain.Message) error {
	t.mu.Lock()
	connected := t.state == domain.Connected
	t.mu.Unlock()
	if !connected {
		return domain.ErrNotConnected
	}
	t.backend.storeMessage(msg)
	return nil
}

func (t *fakeTransport) Messages() <-chan domain.Message { return t.inbox }

func (t *fakeTransport) State() domain.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == domain.Connected {
		close(t.inbox)
	}
	t.state = domain.Disconnected
	return nil
}

type party struct {
	id    domain.Identity
	keys  *keyring.Service
	pair  domain.KeyPair
	store *conversation.Store
}

// newParty builds a conversation store for id over backend and starts it.
func newParty(t *testing.T, backend *fakeBackend, id domain.Identity, fallback bool) *party {
	t.Helper()
	keys := keyring.New(store.NewFileStore(t.TempDir()), id, "pw", zerolog.Nop())
	transport := newFakeTransport(backend, id)
	cs := conversation.New(id, keys, backend, backend, transport, fallback, zerolog.Nop())
	if err := cs.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s): %v", id, err)
	}
	pair, ok := keys.Load(context.Background())
	if !ok {
		t.Fatalf("no key pair after Start(%s)", id)
	}
	return &party{id: id, keys: keys, pair: pair, store: cs}
}

const (
	alice = domain.Identity("alice@example.com")
	bob   = domain.Identity("bob@example.com")
)

func TestSendThenReload(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)
	b := newParty(t, backend, bob, false)

	delivered := make(chan domain.DecryptedMessage, 1)
	b.store.OnMessage = func(m domain.DecryptedMessage) { delivered <- m }

	if err := b.store.SelectContact(context.Background(), alice); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}
	a.store.AddContact(bob)
	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}

	if _, err := a.store.SendMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// Optimistic local echo on A's side.
	if msgs := a.store.Messages(); len(msgs) != 1 || msgs[0].PlainText != "hola" {
		t.Fatalf("A local echo = %+v", msgs)
	}

	// Live delivery on B's side, decrypted via the receiver copy.
	select {
	case m := <-delivered:
		if m.PlainText != "hola" || m.SenderID != alice {
			t.Fatalf("B delivery = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("B never received the message")
	}

	// A reloads history: the sender copy must decrypt.
	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact (reload): %v", err)
	}
	if msgs := a.store.Messages(); len(msgs) != 1 || msgs[0].PlainText != "hola" {
		t.Fatalf("A reloaded history = %+v", msgs)
	}

	// B reloads history: the receiver copy must decrypt.
	if err := b.store.SelectContact(context.Background(), alice); err != nil {
		t.Fatalf("SelectContact (B reload): %v", err)
	}
	if msgs := b.store.Messages(); len(msgs) != 1 || msgs[0].PlainText != "hola" {
		t.Fatalf("B reloaded history = %+v", msgs)
	}
}

func TestHistoryPlaceholdersAreIsolated(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)

	good, err := crypto.Encrypt("still readable", a.pair.Public)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Legacy record: A sent it, but no sender copy was stored.
	backend.msgs = append(backend.msgs, domain.Message{
		ID: "legacy", SenderID: alice, ReceiverID: bob,
		EncryptedContent: good, Timestamp: time.Now().UTC(), Status: domain.StatusSent,
	})
	// Inbound record sealed for some other key pair.
	other := newParty(t, backend, "carol@example.com", false)
	foreign, err := crypto.Encrypt("not for alice", other.pair.Public)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	backend.msgs = append(backend.msgs, domain.Message{
		ID: "foreign", SenderID: bob, ReceiverID: alice,
		EncryptedContent: foreign, Timestamp: time.Now().UTC(), Status: domain.StatusSent,
	})
	// A healthy inbound record.
	backend.msgs = append(backend.msgs, domain.Message{
		ID: "ok", SenderID: bob, ReceiverID: alice,
		EncryptedContent: good, Timestamp: time.Now().UTC(), Status: domain.StatusSent,
	})

	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}
	msgs := a.store.Messages()
	if len(msgs) != 3 {
		t.Fatalf("history length = %d, want 3", len(msgs))
	}
	if msgs[0].PlainText != conversation.PlaceholderUnavailable {
		t.Fatalf("legacy record = %q", msgs[0].PlainText)
	}
	if msgs[1].PlainText != conversation.PlaceholderDecryptError {
		t.Fatalf("foreign record = %q", msgs[1].PlainText)
	}
	if msgs[2].PlainText != "still readable" {
		t.Fatalf("healthy record = %q", msgs[2].PlainText)
	}
}

func TestDirectoryMissWithoutFallbackRefusesSend(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)

	a.store.AddContact("stranger@example.com")
	if err := a.store.SelectContact(context.Background(), "stranger@example.com"); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}
	_, err := a.store.SendMessage(context.Background(), "hello?")
	if !errors.Is(err, domain.ErrRecipientKeyUnavailable) {
		t.Fatalf("want ErrRecipientKeyUnavailable, got %v", err)
	}
	if len(backend.msgs) != 0 {
		t.Fatalf("message stored despite refusal: %d", len(backend.msgs))
	}
}

func TestDirectoryMissFallbackIsUnreadableByPeer(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, true)
	b := newParty(t, backend, bob, false)

	// B loses its directory entry.
	backend.mu.Lock()
	delete(backend.keys, bob)
	backend.mu.Unlock()

	a.store.AddContact(bob)
	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}
	if _, err := a.store.SendMessage(context.Background(), "degraded"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	stored := backend.msgs[len(backend.msgs)-1]
	// The receiver envelope opens with A's own key: the fallback sealed it
	// for the sender, not the peer.
	if got, err := crypto.Decrypt(stored.EncryptedContent, a.pair.Private); err != nil || got != "degraded" {
		t.Fatalf("sender opening receiver copy: %q, %v", got, err)
	}
	if _, err := crypto.Decrypt(stored.EncryptedContent, b.pair.Private); !errors.Is(err, domain.ErrKeyMismatch) {
		t.Fatalf("peer decrypt: want ErrKeyMismatch, got %v", err)
	}
}

func TestInboundGrowsContactSetOnce(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)
	b := newParty(t, backend, bob, false)

	delivered := make(chan domain.DecryptedMessage, 4)
	b.store.OnMessage = func(m domain.DecryptedMessage) { delivered <- m }
	if err := b.store.SelectContact(context.Background(), alice); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}

	a.store.AddContact(bob)
	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}
	for _, text := range []string{"uno", "dos"} {
		if _, err := a.store.SendMessage(context.Background(), text); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery timeout")
		}
	}

	contacts := b.store.Contacts()
	count := 0
	for _, c := range contacts {
		if c == alice {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("alice appears %d times in %v", count, contacts)
	}

	// Manual add of an existing contact is a no-op too.
	if a.store.AddContact(bob) {
		t.Fatal("duplicate AddContact reported as new")
	}
	if !a.store.AddContact("carol@example.com") {
		t.Fatal("new AddContact not reported")
	}
}

// reentrantHistory invokes a hook the first time Messages is called, letting
// a test supersede an in-flight history load.
type reentrantHistory struct {
	*fakeBackend
	fired atomic.Bool
	hook  func()
}

func (h *reentrantHistory) Messages(ctx context.Context, id, other domain.Identity) ([]domain.Message, error) {
	// sync.Once.Do deadlocks on re-entry; the hook must be able to call back
	// into Messages, so use a CAS guard instead.
	if h.fired.CompareAndSwap(false, true) {
		h.hook()
	}
	return h.fakeBackend.Messages(ctx, id, other)
}

func TestSupersededHistoryLoadIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	keys := keyring.New(store.NewFileStore(t.TempDir()), alice, "pw", zerolog.Nop())
	transport := newFakeTransport(backend, alice)
	history := &reentrantHistory{fakeBackend: backend}

	cs := conversation.New(alice, keys, backend, history, transport, false, zerolog.Nop())
	if err := cs.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pair, _ := keys.Load(context.Background())

	// History with bob holds one message; history with carol is empty.
	env, err := crypto.Encrypt("from bob", pair.Public)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	backend.msgs = append(backend.msgs, domain.Message{
		ID: "m-bob", SenderID: bob, ReceiverID: alice,
		EncryptedContent: env, Timestamp: time.Now().UTC(), Status: domain.StatusSent,
	})

	// While bob's history is loading, the user switches to carol.
	history.hook = func() {
		if err := cs.SelectContact(context.Background(), "carol@example.com"); err != nil {
			t.Errorf("nested SelectContact: %v", err)
		}
	}
	if err := cs.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}

	if got := cs.Selected(); got != "carol@example.com" {
		t.Fatalf("selected = %q, want carol", got)
	}
	if msgs := cs.Messages(); len(msgs) != 0 {
		t.Fatalf("stale history applied: %+v", msgs)
	}
}

func TestSendRejectedWhileDisconnected(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)
	b := newParty(t, backend, bob, false)
	_ = b

	a.store.AddContact(bob)
	if err := a.store.SelectContact(context.Background(), bob); err != nil {
		t.Fatalf("SelectContact: %v", err)
	}

	backend.mu.Lock()
	transport := backend.online[alice]
	backend.mu.Unlock()
	transport.mu.Lock()
	transport.state = domain.Disconnected
	transport.mu.Unlock()

	if _, err := a.store.SendMessage(context.Background(), "into the void"); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestStartEscalatesRejectedCredential(t *testing.T) {
	backend := newFakeBackend()
	backend.registerErr = domain.ErrAuthExpired

	keys := keyring.New(store.NewFileStore(t.TempDir()), alice, "pw", zerolog.Nop())
	cs := conversation.New(alice, keys, backend, backend, newFakeTransport(backend, alice), false, zerolog.Nop())
	if err := cs.Start(context.Background()); !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("want ErrAuthExpired, got %v", err)
	}
}

func TestLoadContactsReplacesSet(t *testing.T) {
	backend := newFakeBackend()
	a := newParty(t, backend, alice, false)

	a.store.AddContact("manual@example.com")
	backend.msgs = append(backend.msgs, domain.Message{
		SenderID: bob, ReceiverID: alice, Timestamp: time.Now().UTC(), Status: domain.StatusSent,
	})

	if err := a.store.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	contacts := a.store.Contacts()
	if len(contacts) != 1 || contacts[0] != bob {
		t.Fatalf("contacts = %v, want [bob]", contacts)
	}
}
