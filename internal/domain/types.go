package domain

import (
	"crypto/rsa"
	"time"
)

// Identity names a party, typically an email address. It is supplied by the
// external identity provider and used as a key everywhere; the core never
// parses it.
type Identity string

// KeyPair is the local long-term asymmetric pair. The private half never
// leaves the machine except inside the encrypted keystore blob.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// Envelope is the three-part ciphertext bundle needed to decrypt one message:
// the AES-GCM payload, the RSA-OAEP wrapped message key and the GCM nonce.
// Each field is standard base64 so the envelope survives any text transport.
type Envelope struct {
	EncryptedMessage string `json:"encryptedMessage"`
	EncryptedKey     string `json:"encryptedKey"`
	IV               string `json:"iv"`
}

// MessageStatus is the best-effort local delivery flag.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusJoined    MessageStatus = "JOINED"
)

// Message is the wire chat message. It carries the same plaintext twice:
// EncryptedContent for the receiver's private key and EncryptedContentSender
// for the sender's own, so the sender can re-read sent history without any
// plaintext ever being stored server-side.
//
// EncryptedContentSender is nil only for records persisted before the sender
// copy existed.
type Message struct {
	ID                     string        `json:"id,omitempty"`
	SenderID               Identity      `json:"senderId"`
	ReceiverID             Identity      `json:"receiverId"`
	EncryptedContent       Envelope      `json:"encryptedContent"`
	EncryptedContentSender *Envelope     `json:"encryptedContentSender,omitempty"`
	Timestamp              time.Time     `json:"timestamp"`
	Status                 MessageStatus `json:"status"`
}

// DecryptedMessage is a Message annotated with its recovered plaintext, or a
// placeholder when recovery was impossible.
type DecryptedMessage struct {
	Message
	PlainText string
}

// ConnState describes the realtime session lifecycle.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected // implies subscribed to the inbound queue
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
