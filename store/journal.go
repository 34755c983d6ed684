// Package store keeps the settlement journal: an append-only record of every
// state transition the engines commit. Engines write to it after a call has
// fully succeeded, so the journal never shows a transition that was rolled back.
package store

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Engine names used in Event.Engine.
const (
	EngineReservation = "reservation"
	EngineSimplePay   = "simplepay"
	EngineRecurring   = "recurring"
	EngineRegistry    = "registry"
)

// Event kinds.
const (
	KindReserved         = "reserved"
	KindConfirmed        = "confirmed"
	KindRefunded         = "refunded"
	KindDeposited        = "deposited"
	KindReceived         = "received"
	KindFundWithdrawn    = "fund_withdrawn"
	KindProceedsWithdraw = "proceeds_withdrawn"
	KindFeesWithdrawn    = "fees_withdrawn"
	KindSetup            = "setup"
	KindSubscribed       = "subscribed"
	KindRenewed          = "renewed"
	KindCancelled        = "cancelled"
	KindDisabled         = "disabled"
	KindEnabled          = "enabled"
	KindEngineCreated    = "engine_created"
	KindConfigChanged    = "config_changed"
)

// Event is one committed state transition.
type Event struct {
	Seq     uint64         `json:"seq"`
	ID      uuid.UUID      `json:"id"`
	Engine  string         `json:"engine"`
	Kind    string         `json:"kind"`
	Seller  common.Address `json:"seller"`
	Actor   common.Address `json:"actor"`
	Subject string         `json:"subject,omitempty"`
	Asset   common.Address `json:"asset"`
	Amount  *big.Int       `json:"amount,omitempty"`
	At      time.Time      `json:"at"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	Engine  string
	Kind    string
	Seller  common.Address
	Subject string
	Limit   int
}

func (f Filter) match(ev *Event) bool {
	if f.Engine != "" && ev.Engine != f.Engine {
		return false
	}
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if f.Seller != (common.Address{}) && ev.Seller != f.Seller {
		return false
	}
	if f.Subject != "" && ev.Subject != f.Subject {
		return false
	}
	return true
}

// Journal is an append-only event log.
type Journal interface {
	// Append assigns the next sequence number (and an id if unset) and stores ev.
	Append(ev *Event) error
	// Get returns the event with the given id.
	Get(id uuid.UUID) (*Event, error)
	// List returns matching events in append order.
	List(f Filter) ([]*Event, error)
	Close() error
}

// Record appends ev to j, logging rather than returning a failure. A nil
// journal discards the event.
func Record(j Journal, log *slog.Logger, ev *Event) {
	if j == nil || ev == nil {
		return
	}
	if err := j.Append(ev); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("journal append failed", "engine", ev.Engine, "kind", ev.Kind, "subject", ev.Subject, "error", err)
	}
}

func prepare(ev *Event) error {
	if ev == nil {
		return ErrNilParam
	}
	if ev.Kind == "" {
		return ErrMissingKind
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return nil
}
