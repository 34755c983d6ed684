// Package relay carries validator confirmations across the boundary between
// the payment domain and the ledger. A validator signs a Message naming the
// record to confirm; an Inbox verifies the signer and applies it at least once.
package relay

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Kind names the ledger a message confirms.
type Kind string

const (
	KindReservation Kind = "reservation"
	KindPayment     Kind = "payment"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindReservation || k == KindPayment }

const (
	domainTag = "libescrow/relay/v1"
	sigLen    = 65
)

// Message is one confirmation. Subject is the reservation index in decimal or
// the payment proof id.
type Message struct {
	Kind    Kind           `json:"kind"`
	Seller  common.Address `json:"seller"`
	Subject string         `json:"subject"`
	Nonce   uint64         `json:"nonce"`
}

// Validate checks the message fields.
func (m *Message) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, m.Kind)
	}
	if m.Subject == "" {
		return ErrEmptySubject
	}
	if m.Kind == KindReservation {
		if _, err := m.Index(); err != nil {
			return err
		}
	}
	return nil
}

// Index parses the subject of a reservation message.
func (m *Message) Index() (uint64, error) {
	idx, err := strconv.ParseUint(m.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSubject, m.Subject)
	}
	return idx, nil
}

// Digest returns the legacy Keccak-256 hash of the canonical encoding:
// tag, kind, seller, length-prefixed subject and big-endian nonce.
func (m *Message) Digest() []byte {
	h := sha3.NewLegacyKeccak256()
	var n [8]byte

	h.Write([]byte(domainTag))
	h.Write([]byte{0})
	h.Write([]byte(m.Kind))
	h.Write([]byte{0})
	h.Write(m.Seller.Bytes())
	binary.BigEndian.PutUint64(n[:], uint64(len(m.Subject)))
	h.Write(n[:])
	h.Write([]byte(m.Subject))
	binary.BigEndian.PutUint64(n[:], m.Nonce)
	h.Write(n[:])
	return h.Sum(nil)
}

// ID returns the hex digest used to drop re-deliveries.
func (m *Message) ID() string {
	return hex.EncodeToString(m.Digest())
}

// Envelope is a message with its signature in [R || S || V] form, V in {27, 28}.
type Envelope struct {
	Message   Message       `json:"message"`
	Signature hexutil.Bytes `json:"signature"`
}

// Sign signs m with key.
func Sign(m Message, key *ecdsa.PrivateKey) (*Envelope, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(m.Digest(), key)
	if err != nil {
		return nil, fmt.Errorf("relay: sign: %w", err)
	}
	sig[64] += 27
	return &Envelope{Message: m, Signature: sig}, nil
}

// Signer recovers the address that signed the envelope.
func (e *Envelope) Signer() (common.Address, error) {
	if len(e.Signature) != sigLen {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(e.Signature))
	}
	sig := make([]byte, sigLen)
	copy(sig, e.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(e.Message.Digest(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
