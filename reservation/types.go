package reservation

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
)

// Stage is the sale phase.
type Stage uint8

const (
	StageNotReady Stage = iota
	StageWhitelistOnly
	StagePublic
	StageClosed
)

var stageNames = [...]string{"not_ready", "whitelist_only", "public", "closed"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return int(s) < len(stageNames) }

// ParseStage parses a stage name as returned by Stage.String.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", ErrInvalidSettings, name)
}

// Item is the buyer's reservation request. MintPrice is the USD price of one
// unit, 8 decimals, and must equal the engine's current price for the stage:
// the whitelist price while whitelist-only, the mint price otherwise. The
// buyer pays usdToAsset(MintPrice * Quantity) in the chosen asset.
type Item struct {
	Seller    common.Address `json:"seller"`
	MintPrice *big.Int       `json:"mint_price"`
	Quantity  uint64         `json:"quantity"`
}

// Reservation is one buyer's paid claim on inventory.
type Reservation struct {
	Index     uint64         `json:"index"`
	Owner     common.Address `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	Deadline  time.Time      `json:"deadline"`
	Value     *big.Int       `json:"value"`
	Quantity  uint64         `json:"quantity"`
	Asset     ledger.Asset   `json:"asset"`
	Received  bool           `json:"received"`
	Refunded  bool           `json:"refunded"`
}

func (r *Reservation) clone() Reservation {
	cp := *r
	cp.Value = new(big.Int).Set(r.Value)
	return cp
}

// Settings is the engine configuration. Prices are USD with 8 decimals.
type Settings struct {
	Stage              Stage            `json:"stage"`
	Assets             []ledger.Asset   `json:"assets"`
	MintPrice          *big.Int         `json:"mint_price"`
	WhitelistPrice     *big.Int         `json:"whitelist_price"`
	MinQuantity        uint64           `json:"min_quantity"`
	MaxQuantity        uint64           `json:"max_quantity"`
	SupplyCap          uint64           `json:"supply_cap"`
	SaleDeadline       time.Time        `json:"sale_deadline"`
	ConfirmationWindow time.Duration    `json:"confirmation_window"`
	Whitelist          []common.Address `json:"whitelist,omitempty"`
	FeeBps             uint16           `json:"fee_bps"`
}

// Validate checks the settings for internal consistency. Incomplete settings
// are valid; the engine rejects reservations until they are complete.
func (s *Settings) Validate() error {
	if !s.Stage.Valid() {
		return fmt.Errorf("%w: stage %d", ErrInvalidSettings, s.Stage)
	}
	if s.MintPrice != nil && s.MintPrice.Sign() < 0 {
		return fmt.Errorf("%w: negative mint price", ErrInvalidSettings)
	}
	if s.WhitelistPrice != nil && s.WhitelistPrice.Sign() < 0 {
		return fmt.Errorf("%w: negative whitelist price", ErrInvalidSettings)
	}
	if s.MaxQuantity > 0 && s.MinQuantity > s.MaxQuantity {
		return fmt.Errorf("%w: min quantity %d > max %d", ErrInvalidSettings, s.MinQuantity, s.MaxQuantity)
	}
	if s.ConfirmationWindow < 0 {
		return fmt.Errorf("%w: negative confirmation window", ErrInvalidSettings)
	}
	if err := revshare.ValidateBps(s.FeeBps); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// complete reports whether the priced settings allow reservations. Accepted
// assets are held by the engine and checked separately.
func (s *Settings) complete() bool {
	return s.MintPrice != nil && s.MintPrice.Sign() > 0 &&
		s.MaxQuantity > 0 && s.SupplyCap > 0 &&
		s.ConfirmationWindow > 0
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
