package relay

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/simplepay"
)

var (
	owner  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	seller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	ctx    = context.Background()
)

type call struct {
	kind    Kind
	caller  common.Address
	seller  common.Address
	subject string
}

type mockConfirmer struct {
	calls []call
	err   error
}

func (m *mockConfirmer) ConfirmReservation(_ context.Context, caller, seller common.Address, index uint64) error {
	m.calls = append(m.calls, call{KindReservation, caller, seller, fmt.Sprint(index)})
	return m.err
}

func (m *mockConfirmer) ConfirmPayment(_ context.Context, caller, seller common.Address, proofID string) error {
	m.calls = append(m.calls, call{KindPayment, caller, seller, proofID})
	return m.err
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func newInbox(t *testing.T, validators ...common.Address) (*Inbox, *mockConfirmer) {
	t.Helper()
	roles, err := access.New(owner, admin, validators...)
	require.NoError(t, err)
	c := &mockConfirmer{}
	in, err := NewInbox(roles, c, nil)
	require.NoError(t, err)
	return in, c
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		err  error
	}{
		{"reservation", Message{Kind: KindReservation, Seller: seller, Subject: "3"}, nil},
		{"payment", Message{Kind: KindPayment, Seller: seller, Subject: "proof-1"}, nil},
		{"bad kind", Message{Kind: "refund", Subject: "1"}, ErrInvalidKind},
		{"empty subject", Message{Kind: KindPayment}, ErrEmptySubject},
		{"non-numeric index", Message{Kind: KindReservation, Subject: "x1"}, ErrInvalidSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestMessage_DigestCoversEveryField(t *testing.T) {
	base := Message{Kind: KindPayment, Seller: seller, Subject: "p", Nonce: 1}
	variants := []Message{
		{Kind: KindReservation, Seller: seller, Subject: "p", Nonce: 1},
		{Kind: KindPayment, Seller: owner, Subject: "p", Nonce: 1},
		{Kind: KindPayment, Seller: seller, Subject: "q", Nonce: 1},
		{Kind: KindPayment, Seller: seller, Subject: "p", Nonce: 2},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.ID(), v.ID())
	}
	assert.Len(t, base.Digest(), 32)
	assert.Equal(t, base.ID(), (&Message{Kind: KindPayment, Seller: seller, Subject: "p", Nonce: 1}).ID())
}

func TestSign_RecoversSigner(t *testing.T) {
	key, addr := newKey(t)
	env, err := Sign(Message{Kind: KindPayment, Seller: seller, Subject: "p"}, key)
	require.NoError(t, err)
	require.Len(t, env.Signature, 65)
	assert.Contains(t, []byte{27, 28}, env.Signature[64])

	got, err := env.Signer()
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestSign_Errors(t *testing.T) {
	_, err := Sign(Message{Kind: KindPayment, Subject: "p"}, nil)
	assert.ErrorIs(t, err, ErrNilKey)

	key, _ := newKey(t)
	_, err = Sign(Message{Kind: "x", Subject: "p"}, key)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestSigner_Tampered(t *testing.T) {
	key, addr := newKey(t)
	env, err := Sign(Message{Kind: KindPayment, Seller: seller, Subject: "p"}, key)
	require.NoError(t, err)

	env.Message.Subject = "other"
	got, err := env.Signer()
	if err == nil {
		assert.NotEqual(t, addr, got)
	}

	env.Signature = env.Signature[:10]
	_, err = env.Signer()
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewInbox_MissingDependency(t *testing.T) {
	_, err := NewInbox(nil, &mockConfirmer{}, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestDeliver(t *testing.T) {
	key, addr := newKey(t)
	in, c := newInbox(t, addr)

	env, err := Sign(Message{Kind: KindReservation, Seller: seller, Subject: "7", Nonce: 1}, key)
	require.NoError(t, err)

	out, err := in.Deliver(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, Applied, out)
	require.Len(t, c.calls, 1)
	assert.Equal(t, call{KindReservation, addr, seller, "7"}, c.calls[0])
	assert.True(t, in.Delivered(env.Message.ID()))

	out, err = in.Deliver(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, Redelivered, out)
	assert.Len(t, c.calls, 1, "redelivery must not reach the ledger")
}

func TestDeliver_UnknownSigner(t *testing.T) {
	key, _ := newKey(t)
	_, other := newKey(t)
	in, c := newInbox(t, other)

	env, err := Sign(Message{Kind: KindPayment, Seller: seller, Subject: "p"}, key)
	require.NoError(t, err)
	out, err := in.Deliver(ctx, env)
	assert.ErrorIs(t, err, ErrUnknownSigner)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.Equal(t, Rejected, out)
	assert.Empty(t, c.calls)
}

func TestDeliver_AlreadyConfirmedIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		err  error
	}{
		{"reservation", KindReservation, fmt.Errorf("%w: index 1", reservation.ErrAlreadyReceived)},
		{"payment", KindPayment, fmt.Errorf("%w: %q", simplepay.ErrAlreadyPaid, "1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, addr := newKey(t)
			in, c := newInbox(t, addr)
			c.err = tt.err

			env, err := Sign(Message{Kind: tt.kind, Seller: seller, Subject: "1"}, key)
			require.NoError(t, err)
			out, err := in.Deliver(ctx, env)
			require.NoError(t, err)
			assert.Equal(t, AlreadyConfirmed, out)
		})
	}
}

func TestDeliver_FailureCanBeRetried(t *testing.T) {
	key, addr := newKey(t)
	in, c := newInbox(t, addr)
	c.err = errors.New("boom")

	env, err := Sign(Message{Kind: KindPayment, Seller: seller, Subject: "p"}, key)
	require.NoError(t, err)
	_, err = in.Deliver(ctx, env)
	require.Error(t, err)
	assert.False(t, in.Delivered(env.Message.ID()))

	c.err = nil
	out, err := in.Deliver(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, Applied, out)
	assert.Len(t, c.calls, 2)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "redelivered", Redelivered.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
