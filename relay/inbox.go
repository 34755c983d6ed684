package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/simplepay"
)

// Confirmer applies confirmations. *registry.Registry implements it.
type Confirmer interface {
	ConfirmReservation(ctx context.Context, caller, seller common.Address, index uint64) error
	ConfirmPayment(ctx context.Context, caller, seller common.Address, proofID string) error
}

// Outcome describes what Deliver did with an envelope.
type Outcome int

const (
	// Rejected accompanies every error.
	Rejected Outcome = iota
	// Applied means the confirmation changed the ledger.
	Applied
	// Redelivered means the message id was already delivered.
	Redelivered
	// AlreadyConfirmed means the record was confirmed by an earlier message.
	AlreadyConfirmed
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Applied:
		return "applied"
	case Redelivered:
		return "redelivered"
	case AlreadyConfirmed:
		return "already_confirmed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Inbox verifies and applies signed confirmations. Safe for concurrent use.
type Inbox struct {
	roles     *access.Controller
	confirmer Confirmer
	log       *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInbox returns an inbox that applies confirmations through c.
func NewInbox(roles *access.Controller, c Confirmer, log *slog.Logger) (*Inbox, error) {
	if roles == nil || c == nil {
		return nil, ErrMissingDependency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Inbox{roles: roles, confirmer: c, log: log, seen: make(map[string]struct{})}, nil
}

// Deliver verifies env and applies it. A message id is remembered only after
// it was applied, so a failed delivery can be retried.
func (in *Inbox) Deliver(ctx context.Context, env *Envelope) (Outcome, error) {
	m := env.Message
	if err := m.Validate(); err != nil {
		return Rejected, err
	}
	signer, err := env.Signer()
	if err != nil {
		return Rejected, err
	}
	if !in.roles.IsValidator(signer) {
		return Rejected, fmt.Errorf("%w: %s", ErrUnknownSigner, signer.Hex())
	}

	id := m.ID()
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.seen[id]; ok {
		in.log.Debug("relay message redelivered", "id", id)
		return Redelivered, nil
	}

	err = in.apply(ctx, signer, &m)
	outcome := Applied
	switch {
	case errors.Is(err, reservation.ErrAlreadyReceived), errors.Is(err, simplepay.ErrAlreadyPaid):
		outcome = AlreadyConfirmed
	case err != nil:
		in.log.Warn("relay message rejected", "id", id, "kind", string(m.Kind), "subject", m.Subject, "error", err)
		return Rejected, err
	}
	in.seen[id] = struct{}{}
	in.log.Info("relay message delivered", "id", id, "kind", string(m.Kind), "seller", m.Seller.Hex(),
		"subject", m.Subject, "signer", signer.Hex(), "outcome", outcome.String())
	return outcome, nil
}

func (in *Inbox) apply(ctx context.Context, signer common.Address, m *Message) error {
	if m.Kind == KindReservation {
		idx, err := m.Index()
		if err != nil {
			return err
		}
		return in.confirmer.ConfirmReservation(ctx, signer, m.Seller, idx)
	}
	return in.confirmer.ConfirmPayment(ctx, signer, m.Seller, m.Subject)
}

// Delivered reports whether the message id was applied.
func (in *Inbox) Delivered(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.seen[id]
	return ok
}
