package conversation

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sobre/internal/crypto"
	"sobre/internal/domain"
)

// Placeholder strings rendered instead of plaintext when recovery is
// impossible. Existing clients show the same strings, so they are part of
// the user-visible contract.
const (
	PlaceholderUnavailable  = "[message unavailable on this device]"
	PlaceholderDecryptError = "[decryption error]"
)

// Store drives one user's conversation state.
type Store struct {
	self      domain.Identity
	keys      domain.KeyManager
	directory domain.KeyDirectory
	history   domain.HistoryClient
	transport domain.Transport
	log       zerolog.Logger

	// AllowSelfKeyFallback permits encrypting for the local public key when
	// the peer's key cannot be fetched. The recipient cannot decrypt such a
	// message; this exists for development setups and stays off unless an
	// operator turns it on deliberately.
	allowSelfKeyFallback bool

	// OnMessage, when set before Start, is invoked for each inbound message
	// appended to the visible history.
	OnMessage func(domain.DecryptedMessage)

	mu         sync.Mutex
	pair       domain.KeyPair
	ready      bool
	contacts   []domain.Identity
	selected   domain.Identity
	generation uint64
	messages   []domain.DecryptedMessage
}

func New(
	self domain.Identity,
	keys domain.KeyManager,
	dir domain.KeyDirectory,
	history domain.HistoryClient,
	transport domain.Transport,
	allowSelfKeyFallback bool,
	log zerolog.Logger,
) *Store {
	return &Store{
		self:                 self,
		keys:                 keys,
		directory:            dir,
		history:              history,
		transport:            transport,
		allowSelfKeyFallback: allowSelfKeyFallback,
		log:                  log,
	}
}

// Start runs the session pipeline: key readiness gates everything, then the
// public half is registered with the directory and the relay session opens.
// A failed registration or connect degrades to a disconnected session rather
// than failing Start; a rejected credential is escalated.
func (s *Store) Start(ctx context.Context) error {
	pair, generated, err := s.keys.EnsureKeyPair(ctx)
	if err != nil {
		return fmt.Errorf("key readiness: %w", err)
	}
	s.mu.Lock()
	s.pair = pair
	s.ready = true
	s.mu.Unlock()
	if generated {
		s.log.Warn().Msg("fresh key pair: previously stored envelopes are no longer readable")
	}

	exported, err := s.keys.ExportPublic(pair.Public)
	if err != nil {
		return fmt.Errorf("export public key: %w", err)
	}
	if err := s.directory.RegisterPublicKey(ctx, s.self, exported); err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return err
		}
		s.log.Warn().Err(err).Msg("public key registration failed; peers may not reach us")
	}

	if err := s.transport.Connect(ctx, s.self); err != nil {
		s.log.Warn().Err(err).Msg("relay connect failed; running detached")
		return nil
	}
	go s.consume()
	return nil
}

// consume is the single reader of the inbound queue.
func (s *Store) consume() {
	for msg := range s.transport.Messages() {
		s.handleInbound(msg)
	}
}

func (s *Store) handleInbound(msg domain.Message) {
	if msg.Status == domain.StatusJoined {
		return
	}
	s.mu.Lock()
	priv := s.pair.Private
	s.mu.Unlock()
	if priv == nil {
		return
	}

	plain, err := crypto.Decrypt(msg.EncryptedContent, priv)
	if err != nil {
		s.log.Warn().Err(err).Str("sender", string(msg.SenderID)).Msg("inbound message dropped")
		return
	}
	dm := domain.DecryptedMessage{Message: msg, PlainText: plain}

	s.mu.Lock()
	s.insertContactLocked(msg.SenderID)
	visible := s.selected == msg.SenderID
	if visible {
		s.messages = append(s.messages, dm)
	}
	notify := s.OnMessage
	s.mu.Unlock()

	// A message for an unselected conversation is only retained by the
	// backend; it shows up on the next SelectContact.
	if visible && notify != nil {
		notify(dm)
	}
}

// LoadContacts replaces the contact set from the backend.
func (s *Store) LoadContacts(ctx context.Context) error {
	contacts, err := s.history.Contacts(ctx, s.self)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.contacts = slices.Clone(contacts)
	s.mu.Unlock()
	return nil
}

// AddContact inserts identity manually and reports whether it was new.
func (s *Store) AddContact(identity domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertContactLocked(identity)
}

func (s *Store) insertContactLocked(identity domain.Identity) bool {
	if identity == s.self || slices.Contains(s.contacts, identity) {
		return false
	}
	s.contacts = append(s.contacts, identity)
	return true
}

// SelectContact switches the active conversation and rebuilds its decrypted
// history. When selections overlap, the latest one wins: a history load
// finishing after a newer selection is discarded, not applied.
func (s *Store) SelectContact(ctx context.Context, identity domain.Identity) error {
	s.mu.Lock()
	s.insertContactLocked(identity)
	s.selected = identity
	s.generation++
	generation := s.generation
	s.messages = nil
	priv := s.pair.Private
	s.mu.Unlock()

	if priv == nil {
		return fmt.Errorf("select contact: %w", domain.ErrKeyFormat)
	}

	stored, err := s.history.Messages(ctx, s.self, identity)
	if err != nil {
		return fmt.Errorf("load history with %s: %w", identity, err)
	}

	decrypted := make([]domain.DecryptedMessage, 0, len(stored))
	for _, msg := range stored {
		decrypted = append(decrypted, s.decryptStored(msg, priv))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation || s.selected != identity {
		return nil // superseded by a newer selection
	}
	s.messages = decrypted
	return nil
}

// decryptStored picks the envelope copy matching the viewer's role. Failures
// degrade to placeholders; one bad message never aborts a history load.
func (s *Store) decryptStored(msg domain.Message, priv *rsa.PrivateKey) domain.DecryptedMessage {
	var env domain.Envelope
	if msg.SenderID == s.self {
		if msg.EncryptedContentSender == nil {
			// Record predates the sender copy.
			return domain.DecryptedMessage{Message: msg, PlainText: PlaceholderUnavailable}
		}
		env = *msg.EncryptedContentSender
	} else {
		env = msg.EncryptedContent
	}

	plain, err := crypto.Decrypt(env, priv)
	if err != nil {
		s.log.Warn().Err(err).Str("message", msg.ID).Msg("stored message not decryptable")
		return domain.DecryptedMessage{Message: msg, PlainText: PlaceholderDecryptError}
	}
	return domain.DecryptedMessage{Message: msg, PlainText: plain}
}

// Contacts returns a snapshot of the contact set.
func (s *Store) Contacts() []domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.contacts)
}

// Messages returns a snapshot of the visible decrypted history.
func (s *Store) Messages() []domain.DecryptedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Selected returns the active conversation peer, if any.
func (s *Store) Selected() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ConnState reports the relay session state.
func (s *Store) ConnState() domain.ConnState { return s.transport.State() }

// SendMessage encrypts plaintext for the selected peer and publishes it.
// The plaintext is carried twice: an envelope for the receiver and an
// independent envelope for the sender's own history. The local echo is
// appended before the publish; transport acknowledgment is never awaited.
func (s *Store) SendMessage(ctx context.Context, plaintext string) (domain.Message, error) {
	s.mu.Lock()
	peer := s.selected
	pair := s.pair
	ready := s.ready
	s.mu.Unlock()

	if peer == "" {
		return domain.Message{}, fmt.Errorf("send: no contact selected")
	}
	if !ready || pair.Private == nil {
		return domain.Message{}, fmt.Errorf("send: %w", domain.ErrKeyFormat)
	}
	if s.transport.State() != domain.Connected {
		return domain.Message{}, domain.ErrNotConnected
	}

	recipientPub, err := s.recipientKey(ctx, peer)
	if err != nil {
		return domain.Message{}, err
	}

	forReceiver, err := crypto.Encrypt(plaintext, recipientPub)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encrypt for receiver: %w", err)
	}
	forSender, err := crypto.Encrypt(plaintext, pair.Public)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encrypt sender copy: %w", err)
	}

	msg := domain.Message{
		ID:                     uuid.NewString(),
		SenderID:               s.self,
		ReceiverID:             peer,
		EncryptedContent:       forReceiver,
		EncryptedContentSender: &forSender,
		Timestamp:              time.Now().UTC(),
		Status:                 domain.StatusSent,
	}

	// Optimistic local echo.
	s.mu.Lock()
	if s.selected == peer {
		s.messages = append(s.messages, domain.DecryptedMessage{Message: msg, PlainText: plaintext})
	}
	s.mu.Unlock()

	if err := s.transport.Send(ctx, msg); err != nil {
		return msg, fmt.Errorf("publish: %w", err)
	}
	return msg, nil
}

// recipientKey resolves the peer's public key, applying the fallback policy
// on a miss. A rejected credential always propagates.
func (s *Store) recipientKey(ctx context.Context, peer domain.Identity) (*rsa.PublicKey, error) {
	exported, err := s.directory.FetchPublicKey(ctx, peer)
	if err == nil {
		pub, importErr := s.keys.ImportPublic(exported)
		if importErr == nil {
			return pub, nil
		}
		err = importErr
	}
	if errors.Is(err, domain.ErrAuthExpired) {
		return nil, err
	}
	if !s.allowSelfKeyFallback {
		return nil, fmt.Errorf("%s: %v: %w", peer, err, domain.ErrRecipientKeyUnavailable)
	}
	// Degraded path: the message is sealed for our own key, so the peer will
	// not be able to read it.
	s.log.Warn().Err(err).Str("peer", string(peer)).
		Msg("peer key unavailable; falling back to self-key encryption")
	s.mu.Lock()
	pub := s.pair.Public
	s.mu.Unlock()
	return pub, nil
}
