package store

import (
	"bytes"
	"log/slog"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	sellerA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	sellerB = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	buyer   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	at      = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func tempBoltJournal(t *testing.T) *BoltJournal {
	t.Helper()
	j, err := OpenBoltJournal(filepath.Join(t.TempDir(), "journal", "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func journals(t *testing.T) map[string]Journal {
	return map[string]Journal{
		"mem":  NewMemJournal(),
		"bolt": tempBoltJournal(t),
	}
}

func testEvent(engine, kind string, seller common.Address, subject string) *Event {
	return &Event{
		Engine:  engine,
		Kind:    kind,
		Seller:  seller,
		Actor:   buyer,
		Subject: subject,
		Amount:  big.NewInt(12345),
		At:      at,
	}
}

func TestJournal_AppendAndGet(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			ev := testEvent(EngineReservation, KindReserved, sellerA, "0")
			require.NoError(t, j.Append(ev))
			assert.Equal(t, uint64(1), ev.Seq)
			assert.NotEqual(t, uuid.Nil, ev.ID)

			got, err := j.Get(ev.ID)
			require.NoError(t, err)
			assert.Equal(t, ev.Seq, got.Seq)
			assert.Equal(t, EngineReservation, got.Engine)
			assert.Equal(t, KindReserved, got.Kind)
			assert.Equal(t, sellerA, got.Seller)
			assert.Equal(t, buyer, got.Actor)
			assert.Equal(t, "12345", got.Amount.String())
			assert.True(t, at.Equal(got.At))
		})
	}
}

func TestJournal_SequenceIncrements(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 3; i++ {
				ev := testEvent(EngineSimplePay, KindDeposited, sellerA, "p")
				require.NoError(t, j.Append(ev))
				assert.Equal(t, uint64(i), ev.Seq)
			}
		})
	}
}

func TestJournal_Duplicate(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			ev := testEvent(EngineRecurring, KindSubscribed, sellerA, "s")
			require.NoError(t, j.Append(ev))
			again := *ev
			err := j.Append(&again)
			assert.ErrorIs(t, err, ErrDuplicateEvent)
			assert.ErrorIs(t, err, ledger.ErrDuplicate)
		})
	}
}

func TestJournal_Validation(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, j.Append(nil), ErrNilParam)
			assert.ErrorIs(t, j.Append(&Event{Engine: EngineRegistry}), ErrMissingKind)

			_, err := j.Get(uuid.New())
			assert.ErrorIs(t, err, ErrEventNotFound)
			assert.ErrorIs(t, err, ledger.ErrNotFound)
		})
	}
}

func TestJournal_List(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, j.Append(testEvent(EngineReservation, KindReserved, sellerA, "0")))
			require.NoError(t, j.Append(testEvent(EngineReservation, KindConfirmed, sellerA, "0")))
			require.NoError(t, j.Append(testEvent(EngineReservation, KindReserved, sellerB, "0")))
			require.NoError(t, j.Append(testEvent(EngineSimplePay, KindDeposited, sellerA, "proof-1")))

			all, err := j.List(Filter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			for i, ev := range all {
				assert.Equal(t, uint64(i+1), ev.Seq)
			}

			res, err := j.List(Filter{Engine: EngineReservation, Seller: sellerA})
			require.NoError(t, err)
			require.Len(t, res, 2)
			assert.Equal(t, KindReserved, res[0].Kind)
			assert.Equal(t, KindConfirmed, res[1].Kind)

			byKind, err := j.List(Filter{Kind: KindReserved, Limit: 1})
			require.NoError(t, err)
			require.Len(t, byKind, 1)
			assert.Equal(t, sellerA, byKind[0].Seller)

			bySubject, err := j.List(Filter{Subject: "proof-1"})
			require.NoError(t, err)
			require.Len(t, bySubject, 1)
			assert.Equal(t, EngineSimplePay, bySubject[0].Engine)
		})
	}
}

func TestBoltJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	j, err := OpenBoltJournal(path)
	require.NoError(t, err)
	ev := testEvent(EngineRegistry, KindEngineCreated, sellerA, "")
	ev.Amount = nil
	require.NoError(t, j.Append(ev))
	require.NoError(t, j.Close())

	j, err = OpenBoltJournal(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(ev.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Amount)

	count, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	next := testEvent(EngineRegistry, KindConfigChanged, sellerA, "")
	require.NoError(t, j.Append(next))
	assert.Equal(t, uint64(2), next.Seq)
}

func TestMemJournal_ReturnsCopies(t *testing.T) {
	j := NewMemJournal()
	ev := testEvent(EngineReservation, KindReserved, sellerA, "0")
	require.NoError(t, j.Append(ev))

	got, err := j.Get(ev.ID)
	require.NoError(t, err)
	got.Kind = "tampered"

	again, err := j.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, KindReserved, again.Kind)
}

func TestRecord_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	Record(nil, log, testEvent(EngineReservation, KindReserved, sellerA, "0"))
	assert.Empty(t, buf.String())

	j := NewMemJournal()
	Record(j, log, &Event{Engine: EngineReservation})
	assert.Contains(t, buf.String(), "journal append failed")

	Record(j, log, testEvent(EngineReservation, KindReserved, sellerA, "0"))
	all, err := j.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
