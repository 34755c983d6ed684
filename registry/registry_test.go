package registry

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/collection"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/recurring"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/simplepay"
	"github.com/bitfsorg/libescrow-go/store"
	"github.com/bitfsorg/libescrow-go/token"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	validator = common.HexToAddress("0x0000000000000000000000000000000000000003")
	regAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	seller    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seller2   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	buyer     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	eth  = ledger.NativeAsset("ETH", 18)
	usdc = ledger.Asset{Address: common.HexToAddress("0x00000000000000000000000000000000000000c1"), Symbol: "USDC", Decimals: 6}
	t0   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	fees = revshare.Schedule{MintBps: 250, PayBps: 100, RecurringBps: 500}
	ctx  = context.Background()
)

type fixture struct {
	r       *Registry
	bank    *token.Bank
	coll    *collection.Registry
	clk     *clock.Manual
	journal *store.MemJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roles, err := access.New(owner, admin, validator)
	require.NoError(t, err)

	conv := pricing.NewConverter(roles)
	require.NoError(t, conv.SetRateSource(owner, "ETH", pricing.NewFixedSource(2000_00000000, 8)))
	require.NoError(t, conv.SetRateSource(owner, "USDC", pricing.NewFixedSource(1_00000000, 8)))

	bank := token.NewBank()
	require.NoError(t, bank.Mint(eth, buyer, ledger.Units(10, 18)))
	require.NoError(t, bank.Mint(usdc, buyer, ledger.Units(10_000, 6)))

	f := &fixture{
		bank:    bank,
		coll:    collection.NewRegistry(regAddr),
		clk:     clock.NewManual(t0),
		journal: store.NewMemJournal(),
	}
	f.r, err = New(Config{
		Address:     regAddr,
		Roles:       roles,
		Prices:      conv,
		Vault:       bank,
		Collections: f.coll,
		Clock:       f.clk,
		Journal:     f.journal,
		Fees:        fees,

		SubscriptionAssets: []ledger.Asset{usdc},
	})
	require.NoError(t, err)
	return f
}

func saleParams() ReservationParams {
	return ReservationParams{
		Settings: reservation.Settings{
			Stage:              reservation.StagePublic,
			Assets:             []ledger.Asset{eth, usdc},
			MintPrice:          ledger.USD(100),
			MaxQuantity:        5,
			SupplyCap:          10,
			ConfirmationWindow: time.Hour,
			FeeBps:             9999,
		},
		CollectionURI: "ipfs://seller",
	}
}

func payParams() simplepay.Settings {
	return simplepay.Settings{
		Assets:             []ledger.Asset{eth, usdc},
		ConfirmationWindow: time.Hour,
	}
}

func TestNew_MissingDependency(t *testing.T) {
	roles, err := access.New(owner, admin)
	require.NoError(t, err)
	_, err = New(Config{Roles: roles})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestNew_CreatesRecurringEngine(t *testing.T) {
	f := newFixture(t)
	require.NotNil(t, f.r.Recurring())
	assert.NotEqual(t, common.Address{}, f.r.Recurring().Address())
	assert.Equal(t, fees.RecurringBps, f.r.Recurring().FeeBps())
}

func TestCreateReservationEngine(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)

	assert.Equal(t, seller, e.Seller())
	assert.Equal(t, fees.MintBps, e.Settings().FeeBps, "fee rate comes from the schedule")

	coll, ok := f.coll.CollectionOf(seller)
	require.True(t, ok)
	assert.Equal(t, coll, e.Collection())
	info, err := f.coll.Info(coll)
	require.NoError(t, err)
	assert.Equal(t, e.Address(), info.Minter)

	got, err := f.r.ReservationEngine(seller)
	require.NoError(t, err)
	assert.Same(t, e, got)

	evs, err := f.journal.List(store.Filter{Engine: store.EngineRegistry, Kind: store.KindEngineCreated})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, seller, evs[0].Seller)
}

func TestCreateReservationEngine_OncePerSeller(t *testing.T) {
	f := newFixture(t)
	_, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)

	_, err = f.r.CreateReservationEngine(owner, seller, saleParams())
	assert.ErrorIs(t, err, ErrAlreadyCreated)
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	_, err = f.r.CreateReservationEngine(owner, seller2, saleParams())
	assert.NoError(t, err)
	assert.Equal(t, []common.Address{seller, seller2}, f.r.Sellers())
}

func TestCreateReservationEngine_Gates(t *testing.T) {
	f := newFixture(t)
	_, err := f.r.CreateReservationEngine(validator, seller, saleParams())
	assert.ErrorIs(t, err, access.ErrNotOwner)

	_, err = f.r.CreateReservationEngine(owner, common.Address{}, saleParams())
	assert.ErrorIs(t, err, ErrZeroSeller)

	bad := saleParams()
	bad.Settings.MinQuantity = 9
	_, err = f.r.CreateReservationEngine(owner, seller, bad)
	assert.ErrorIs(t, err, reservation.ErrInvalidSettings)
	_, ok := f.coll.CollectionOf(seller)
	assert.False(t, ok, "invalid settings must not create a collection")

	require.NoError(t, f.r.Pause(admin))
	_, err = f.r.CreateReservationEngine(owner, seller, saleParams())
	assert.ErrorIs(t, err, access.ErrPaused)
}

func TestCreatePaymentEscrow(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreatePaymentEscrow(owner, seller, payParams())
	require.NoError(t, err)
	assert.Equal(t, fees.PayBps, e.Settings().FeeBps)

	_, err = f.r.CreatePaymentEscrow(owner, seller, payParams())
	assert.ErrorIs(t, err, ErrAlreadyCreated)

	_, err = f.r.PaymentEscrow(seller2)
	assert.ErrorIs(t, err, ErrEngineNotFound)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestEngineAddressesAreDistinct(t *testing.T) {
	f := newFixture(t)
	a, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)
	b, err := f.r.CreatePaymentEscrow(owner, seller, payParams())
	require.NoError(t, err)

	addrs := map[common.Address]bool{a.Address(): true, b.Address(): true, f.r.Recurring().Address(): true}
	assert.Len(t, addrs, 3)
}

func TestForwardedSetters(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)

	require.NoError(t, f.r.ChangeStage(validator, seller, reservation.StageWhitelistOnly))
	require.NoError(t, f.r.ChangeMintPrice(owner, seller, ledger.USD(120)))
	require.NoError(t, f.r.ChangeWhitelistPrice(validator, seller, ledger.USD(90)))
	require.NoError(t, f.r.ChangeQuantityLimits(validator, seller, 2, 4))
	require.NoError(t, f.r.ChangeSupplyCap(validator, seller, 20))
	require.NoError(t, f.r.ChangeSaleDeadline(validator, seller, t0.Add(48*time.Hour)))
	require.NoError(t, f.r.ChangeConfirmationWindow(validator, seller, 2*time.Hour))
	require.NoError(t, f.r.AddWhitelist(validator, seller, buyer))
	require.NoError(t, f.r.SetReservationAsset(validator, seller, usdc, false))

	s := e.Settings()
	assert.Equal(t, reservation.StageWhitelistOnly, s.Stage)
	assert.Equal(t, ledger.USD(120), s.MintPrice)
	assert.Equal(t, ledger.USD(90), s.WhitelistPrice)
	assert.Equal(t, uint64(2), s.MinQuantity)
	assert.Equal(t, uint64(4), s.MaxQuantity)
	assert.Equal(t, uint64(20), s.SupplyCap)
	assert.Equal(t, 2*time.Hour, s.ConfirmationWindow)
	assert.True(t, e.IsWhitelisted(buyer))
	assert.False(t, e.IsSupported(usdc.Address))

	require.NoError(t, f.r.RemoveWhitelist(validator, seller, buyer))
	assert.False(t, e.IsWhitelisted(buyer))

	assert.ErrorIs(t, f.r.ChangeStage(stranger, seller, reservation.StageClosed), ledger.ErrUnauthorized)
	assert.ErrorIs(t, f.r.ChangeStage(validator, seller2, reservation.StageClosed), ErrEngineNotFound)
}

func TestForwardedPaymentSetters(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreatePaymentEscrow(owner, seller, payParams())
	require.NoError(t, err)

	require.NoError(t, f.r.SetPaymentMaxUSD(validator, seller, ledger.USD(50)))
	require.NoError(t, f.r.SetPaymentConfirmationWindow(validator, seller, time.Minute))
	require.NoError(t, f.r.SetPaymentAsset(validator, seller, eth, false))

	s := e.Settings()
	assert.Equal(t, ledger.USD(50), s.MaxUSD)
	assert.Equal(t, time.Minute, s.ConfirmationWindow)
	assert.False(t, e.IsSupported(eth.Address))

	assert.ErrorIs(t, f.r.SetPaymentMaxUSD(stranger, seller, nil), ledger.ErrUnauthorized)
}

func TestSetSubscriptionAsset(t *testing.T) {
	f := newFixture(t)
	subs := f.r.Recurring()
	assert.Equal(t, []ledger.Asset{usdc}, subs.Assets())

	assert.ErrorIs(t, f.r.SetSubscriptionAsset(stranger, usdc, false), ledger.ErrUnauthorized)
	assert.ErrorIs(t, subs.SetAssetSupport(owner, usdc, false), recurring.ErrNotFactory)

	require.NoError(t, f.r.SetSubscriptionAsset(validator, usdc, false))
	assert.False(t, subs.IsSupported(usdc.Address))

	require.NoError(t, f.r.Pause(admin))
	assert.ErrorIs(t, f.r.SetSubscriptionAsset(owner, usdc, true), access.ErrPaused)
	require.NoError(t, f.r.Unpause(admin))
	require.NoError(t, f.r.SetSubscriptionAsset(owner, usdc, true))
	assert.True(t, subs.IsSupported(usdc.Address))
}

func TestEnginesRejectDirectAdministration(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)
	assert.ErrorIs(t, e.SetStage(owner, reservation.StageClosed), reservation.ErrNotFactory)
}

func TestPause_FreezesAdministrationOnly(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)

	assert.ErrorIs(t, f.r.Pause(owner), access.ErrNotAdmin)
	require.NoError(t, f.r.Pause(admin))

	assert.ErrorIs(t, f.r.ChangeStage(validator, seller, reservation.StageClosed), access.ErrPaused)
	assert.ErrorIs(t, f.r.SetFees(owner, fees), access.ErrPaused)
	assert.ErrorIs(t, f.r.SetupSubscription(validator, seller, "gold", ledger.USD(10), time.Hour), access.ErrPaused)

	// Buyers and validators keep operating.
	idx, err := e.Reserve(ctx, buyer, reservation.Item{Seller: seller, MintPrice: ledger.USD(100), Quantity: 1}, eth, ledger.Pay(ledger.Units(1, 17)))
	require.NoError(t, err)
	require.NoError(t, f.r.ConfirmReservation(ctx, validator, seller, idx))

	require.NoError(t, f.r.Unpause(admin))
	assert.NoError(t, f.r.ChangeStage(validator, seller, reservation.StageClosed))
}

func TestSetFees_PropagatesToEngines(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)
	esc, err := f.r.CreatePaymentEscrow(owner, seller, payParams())
	require.NoError(t, err)

	next := revshare.Schedule{MintBps: 1000, PayBps: 200, RecurringBps: 300}
	assert.ErrorIs(t, f.r.SetFees(validator, next), access.ErrNotOwner)
	assert.ErrorIs(t, f.r.SetFees(owner, revshare.Schedule{MintBps: 10001}), revshare.ErrInvalidBps)

	require.NoError(t, f.r.SetFees(owner, next))
	assert.Equal(t, next, f.r.Fees())
	assert.Equal(t, uint16(1000), res.Settings().FeeBps)
	assert.Equal(t, uint16(200), esc.Settings().FeeBps)
	assert.Equal(t, uint16(300), f.r.Recurring().FeeBps())

	// Engines created later pick up the new schedule.
	res2, err := f.r.CreateReservationEngine(owner, seller2, saleParams())
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), res2.Settings().FeeBps)
}

func TestConfirmReservation_FeesConserveValue(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreateReservationEngine(owner, seller, saleParams())
	require.NoError(t, err)

	// Two units at $100 and $2000/ETH.
	value := ledger.Units(1, 17)
	idx, err := e.Reserve(ctx, buyer, reservation.Item{Seller: seller, MintPrice: ledger.USD(100), Quantity: 2}, eth, ledger.Pay(value))
	require.NoError(t, err)

	assert.ErrorIs(t, f.r.ConfirmReservation(ctx, stranger, seller, idx), ledger.ErrUnauthorized)
	require.NoError(t, f.r.ConfirmReservation(ctx, validator, seller, idx))

	proceeds := e.Proceeds(eth.Address)
	fee := e.Fees(eth.Address)
	assert.Equal(t, 0, new(big.Int).Add(proceeds, fee).Cmp(value))
	assert.Equal(t, 0, fee.Cmp(big.NewInt(2_500_000_000_000_000)))
	assert.Equal(t, uint64(2), f.coll.BalanceOf(e.Collection(), buyer))
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	e, err := f.r.CreatePaymentEscrow(owner, seller, payParams())
	require.NoError(t, err)
	require.NoError(t, f.bank.Approve(usdc, buyer, e.Address(), ledger.Units(100, 6)))

	_, err = e.Deposit(ctx, buyer, usdc, ledger.USD(40), "proof-1", ledger.NoPayment)
	require.NoError(t, err)

	assert.ErrorIs(t, f.r.ConfirmPayment(ctx, owner, seller, "proof-1"), access.ErrNotValidator)
	require.NoError(t, f.r.ConfirmPayment(ctx, validator, seller, "proof-1"))
	assert.ErrorIs(t, f.r.ConfirmPayment(ctx, validator, seller, "proof-1"), simplepay.ErrAlreadyPaid)

	p, err := e.Payment("proof-1")
	require.NoError(t, err)
	assert.True(t, p.Received)
	// 1% fee on 40 USDC.
	assert.Equal(t, 0, e.Allowance(usdc.Address).Cmp(big.NewInt(39_600_000)))
	assert.Equal(t, 0, e.Fees(usdc.Address).Cmp(big.NewInt(400_000)))
}

func TestSetupSubscription(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.r.SetupSubscription(validator, seller, "gold", ledger.USD(10), time.Hour))

	terms, err := f.r.Recurring().Terms(seller, "gold")
	require.NoError(t, err)
	assert.Equal(t, ledger.USD(10), terms.USDValue)
	assert.Equal(t, time.Hour, terms.Duration)

	assert.ErrorIs(t, f.r.SetupSubscription(stranger, seller, "silver", ledger.USD(5), time.Hour), ledger.ErrUnauthorized)
}
