package mango

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"

	"github.com/coldbell/mango-v4-go/internal/codec"
)

var (
	BankDiscriminator                         = [8]byte{0x8e, 0x31, 0xa6, 0xf2, 0x32, 0x42, 0x61, 0xbc}
	BookSideDiscriminator                     = [8]byte{0x48, 0x2c, 0xe1, 0x8d, 0xb2, 0x82, 0x61, 0x39}
	EventQueueDiscriminator                   = [8]byte{0x29, 0xd0, 0x74, 0xd1, 0xad, 0x74, 0x8d, 0x44}
	GroupDiscriminator                        = [8]byte{0xd1, 0xf9, 0xd0, 0x3f, 0xb6, 0x59, 0xba, 0xfe}
	MangoAccountDiscriminator                 = [8]byte{0xf3, 0xe4, 0xf7, 0x03, 0xa9, 0x34, 0xaf, 0x1f}
	MintInfoDiscriminator                     = [8]byte{0xc7, 0x73, 0xd5, 0xdd, 0xdb, 0x1d, 0x87, 0xae}
	PerpMarketDiscriminator                   = [8]byte{0x0a, 0xdf, 0x0c, 0x2c, 0x6b, 0xf5, 0x37, 0xf7}
	Serum3MarketDiscriminator                 = [8]byte{0x75, 0x07, 0xb6, 0xf6, 0x60, 0x68, 0x88, 0x84}
	Serum3MarketIndexReservationDiscriminator = [8]byte{0xf6, 0x10, 0xc6, 0x64, 0xef, 0x70, 0x78, 0x35}
	StubOracleDiscriminator                   = [8]byte{0xe0, 0xfb, 0xfe, 0x63, 0xb1, 0xae, 0x89, 0x04}
)

const (
	BookSideNodeCount     = 1024
	EventQueueCapacity    = 488
	MintInfoMaxBanks      = 6
	AddressLookupTableMax = 20
)

// Account is implemented by every on-chain record kind.
type Account interface {
	AccountName() string
	Discriminator() [8]byte
}

type accountPtr[T any] interface {
	*T
	Account
}

// DecodeAccount gates data on T's discriminator and decodes the body.
func DecodeAccount[T any, PT accountPtr[T]](data []byte) (*T, error) {
	out := PT(new(T))
	if err := codec.DecodeAccount(data, out.Discriminator(), out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", out.AccountName(), err)
	}
	return (*T)(out), nil
}

// EncodeAccount is the inverse of DecodeAccount.
func EncodeAccount(acc Account) ([]byte, error) {
	return codec.EncodeAccount(acc.Discriminator(), acc)
}

type Bank struct {
	Group                        solana.PublicKey `json:"group"`
	Name                         [16]uint8        `json:"name"`
	Mint                         solana.PublicKey `json:"mint"`
	Vault                        solana.PublicKey `json:"vault"`
	Oracle                       solana.PublicKey `json:"oracle"`
	OracleConfig                 OracleConfig     `json:"oracle_config"`
	DepositIndex                 codec.I80F48     `json:"deposit_index"`
	BorrowIndex                  codec.I80F48     `json:"borrow_index"`
	CachedIndexedTotalDeposits   codec.I80F48     `json:"cached_indexed_total_deposits"`
	CachedIndexedTotalBorrows    codec.I80F48     `json:"cached_indexed_total_borrows"`
	IndexedDeposits              codec.I80F48     `json:"indexed_deposits"`
	IndexedBorrows               codec.I80F48     `json:"indexed_borrows"`
	IndexLastUpdated             int64            `json:"index_last_updated"`
	BankRateLastUpdated          int64            `json:"bank_rate_last_updated"`
	AvgUtilization               codec.I80F48     `json:"avg_utilization"`
	AdjustmentFactor             codec.I80F48     `json:"adjustment_factor"`
	Util0                        codec.I80F48     `json:"util0"`
	Rate0                        codec.I80F48     `json:"rate0"`
	Util1                        codec.I80F48     `json:"util1"`
	Rate1                        codec.I80F48     `json:"rate1"`
	MaxRate                      codec.I80F48     `json:"max_rate"`
	CollectedFeesNative          codec.I80F48     `json:"collected_fees_native"`
	LoanOriginationFeeRate       codec.I80F48     `json:"loan_origination_fee_rate"`
	LoanFeeRate                  codec.I80F48     `json:"loan_fee_rate"`
	MaintAssetWeight             codec.I80F48     `json:"maint_asset_weight"`
	InitAssetWeight              codec.I80F48     `json:"init_asset_weight"`
	MaintLiabWeight              codec.I80F48     `json:"maint_liab_weight"`
	InitLiabWeight               codec.I80F48     `json:"init_liab_weight"`
	LiquidationFee               codec.I80F48     `json:"liquidation_fee"`
	Dust                         codec.I80F48     `json:"dust"`
	FlashLoanTokenAccountInitial uint64           `json:"flash_loan_token_account_initial"`
	FlashLoanApprovedAmount      uint64           `json:"flash_loan_approved_amount"`
	TokenIndex                   TokenIndex       `json:"token_index"`
	Bump                         uint8            `json:"bump"`
	MintDecimals                 uint8            `json:"mint_decimals"`
	BankNum                      uint32           `json:"bank_num"`
	Reserved                     [2560]uint8      `json:"reserved"`
}

func (Bank) AccountName() string    { return "Bank" }
func (Bank) Discriminator() [8]byte { return BankDiscriminator }
func (b *Bank) NameString() string  { return trimName(b.Name[:]) }

type BookSide struct {
	BookSideType BookSideType               `json:"book_side_type"`
	Padding      [3]uint8                   `json:"padding"`
	BumpIndex    uint32                     `json:"bump_index"`
	FreeListLen  uint32                     `json:"free_list_len"`
	FreeListHead uint32                     `json:"free_list_head"`
	RootNode     uint32                     `json:"root_node"`
	LeafCount    uint32                     `json:"leaf_count"`
	Nodes        [BookSideNodeCount]AnyNode `json:"nodes"`
	Reserved     [256]uint8                 `json:"reserved"`
}

func (BookSide) AccountName() string    { return "BookSide" }
func (BookSide) Discriminator() [8]byte { return BookSideDiscriminator }

// Leaves returns every leaf slot in the node pool, in slot order. The tree
// itself is not walked.
func (b *BookSide) Leaves() []LeafNode {
	var leaves []LeafNode
	for _, node := range b.Nodes[:] {
		if node.Tag != uint32(NodeTagLeafNode) {
			continue
		}
		leaf, err := node.AsLeaf()
		if err != nil {
			continue
		}
		leaves = append(leaves, leaf)
	}
	return leaves
}

type EventQueue struct {
	Header EventQueueHeader             `json:"header"`
	Buf    [EventQueueCapacity]AnyEvent `json:"buf"`
}

func (EventQueue) AccountName() string    { return "EventQueue" }
func (EventQueue) Discriminator() [8]byte { return EventQueueDiscriminator }

// Events returns the queued events from head, wrapping around the ring.
func (q *EventQueue) Events() []AnyEvent {
	count := int(q.Header.Count)
	if count > EventQueueCapacity {
		count = EventQueueCapacity
	}
	out := make([]AnyEvent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, q.Buf[(int(q.Header.Head)+i)%EventQueueCapacity])
	}
	return out
}

type Group struct {
	Creator             solana.PublicKey                        `json:"creator"`
	GroupNum            uint32                                  `json:"group_num"`
	Admin               solana.PublicKey                        `json:"admin"`
	FastListingAdmin    solana.PublicKey                        `json:"fast_listing_admin"`
	Padding             [4]uint8                                `json:"padding"`
	InsuranceVault      solana.PublicKey                        `json:"insurance_vault"`
	InsuranceMint       solana.PublicKey                        `json:"insurance_mint"`
	Bump                uint8                                   `json:"bump"`
	Testing             uint8                                   `json:"testing"`
	Version             uint8                                   `json:"version"`
	Padding2            [5]uint8                                `json:"padding2"`
	AddressLookupTables [AddressLookupTableMax]solana.PublicKey `json:"address_lookup_tables"`
	Reserved            [1920]uint8                             `json:"reserved"`
}

func (Group) AccountName() string    { return "Group" }
func (Group) Discriminator() [8]byte { return GroupDiscriminator }

// LookupTables returns the configured address lookup tables, skipping empty slots.
func (g *Group) LookupTables() []solana.PublicKey {
	return lo.Filter(g.AddressLookupTables[:], func(pk solana.PublicKey, _ int) bool {
		return !pk.IsZero()
	})
}

type MangoAccount struct {
	Group                       solana.PublicKey `json:"group"`
	Owner                       solana.PublicKey `json:"owner"`
	Name                        [32]uint8        `json:"name"`
	Delegate                    solana.PublicKey `json:"delegate"`
	AccountNum                  uint32           `json:"account_num"`
	BeingLiquidated             uint8            `json:"being_liquidated"`
	InHealthRegion              uint8            `json:"in_health_region"`
	Bump                        uint8            `json:"bump"`
	Padding                     [1]uint8         `json:"padding"`
	NetDeposits                 int64            `json:"net_deposits"`
	NetSettled                  int64            `json:"net_settled"`
	HealthRegionBeginInitHealth int64            `json:"health_region_begin_init_health"`
	Reserved                    [240]uint8       `json:"reserved"`
	HeaderVersion               uint8            `json:"header_version"`
	Padding3                    [7]uint8         `json:"padding3"`
	Padding4                    uint32           `json:"padding4"`
	Tokens                      []TokenPosition  `json:"tokens"`
	Padding5                    uint32           `json:"padding5"`
	Serum3                      []Serum3Orders   `json:"serum3"`
	Padding6                    uint32           `json:"padding6"`
	Perps                       []PerpPosition   `json:"perps"`
	Padding7                    uint32           `json:"padding7"`
	PerpOpenOrders              []PerpOpenOrder  `json:"perp_open_orders"`
}

func (MangoAccount) AccountName() string    { return "MangoAccount" }
func (MangoAccount) Discriminator() [8]byte { return MangoAccountDiscriminator }
func (a *MangoAccount) NameString() string  { return trimName(a.Name[:]) }

func (a *MangoAccount) ActiveTokenPositions() []TokenPosition {
	return lo.Filter(a.Tokens, func(p TokenPosition, _ int) bool { return p.IsActive() })
}

func (a *MangoAccount) ActiveSerum3Orders() []Serum3Orders {
	return lo.Filter(a.Serum3, func(o Serum3Orders, _ int) bool { return o.IsActive() })
}

func (a *MangoAccount) ActivePerpPositions() []PerpPosition {
	return lo.Filter(a.Perps, func(p PerpPosition, _ int) bool { return p.IsActive() })
}

func (a *MangoAccount) ActivePerpOpenOrders() []PerpOpenOrder {
	return lo.Filter(a.PerpOpenOrders, func(o PerpOpenOrder, _ int) bool { return o.IsActive() })
}

type MintInfo struct {
	Group              solana.PublicKey                   `json:"group"`
	TokenIndex         TokenIndex                         `json:"token_index"`
	GroupInsuranceFund uint8                              `json:"group_insurance_fund"`
	Padding1           [5]uint8                           `json:"padding1"`
	Mint               solana.PublicKey                   `json:"mint"`
	Banks              [MintInfoMaxBanks]solana.PublicKey `json:"banks"`
	Vaults             [MintInfoMaxBanks]solana.PublicKey `json:"vaults"`
	Oracle             solana.PublicKey                   `json:"oracle"`
	RegistrationTime   int64                              `json:"registration_time"`
	Reserved           [2560]uint8                        `json:"reserved"`
}

func (MintInfo) AccountName() string    { return "MintInfo" }
func (MintInfo) Discriminator() [8]byte { return MintInfoDiscriminator }

// ActiveBanks returns the bank addresses that are set.
func (m *MintInfo) ActiveBanks() []solana.PublicKey {
	return lo.Filter(m.Banks[:], func(pk solana.PublicKey, _ int) bool { return !pk.IsZero() })
}

type PerpMarket struct {
	Group                      solana.PublicKey `json:"group"`
	SettleTokenIndex           TokenIndex       `json:"settle_token_index"`
	PerpMarketIndex            PerpMarketIndex  `json:"perp_market_index"`
	TrustedMarket              uint8            `json:"trusted_market"`
	GroupInsuranceFund         uint8            `json:"group_insurance_fund"`
	Padding1                   [2]uint8         `json:"padding1"`
	Name                       [16]uint8        `json:"name"`
	Oracle                     solana.PublicKey `json:"oracle"`
	OracleConfig               OracleConfig     `json:"oracle_config"`
	Bids                       solana.PublicKey `json:"bids"`
	Asks                       solana.PublicKey `json:"asks"`
	EventQueue                 solana.PublicKey `json:"event_queue"`
	QuoteLotSize               int64            `json:"quote_lot_size"`
	BaseLotSize                int64            `json:"base_lot_size"`
	MaintAssetWeight           codec.I80F48     `json:"maint_asset_weight"`
	InitAssetWeight            codec.I80F48     `json:"init_asset_weight"`
	MaintLiabWeight            codec.I80F48     `json:"maint_liab_weight"`
	InitLiabWeight             codec.I80F48     `json:"init_liab_weight"`
	LiquidationFee             codec.I80F48     `json:"liquidation_fee"`
	MakerFee                   codec.I80F48     `json:"maker_fee"`
	TakerFee                   codec.I80F48     `json:"taker_fee"`
	MinFunding                 codec.I80F48     `json:"min_funding"`
	MaxFunding                 codec.I80F48     `json:"max_funding"`
	ImpactQuantity             int64            `json:"impact_quantity"`
	LongFunding                codec.I80F48     `json:"long_funding"`
	ShortFunding               codec.I80F48     `json:"short_funding"`
	FundingLastUpdated         int64            `json:"funding_last_updated"`
	OpenInterest               int64            `json:"open_interest"`
	SeqNum                     uint64           `json:"seq_num"`
	FeesAccrued                codec.I80F48     `json:"fees_accrued"`
	Bump                       uint8            `json:"bump"`
	BaseDecimals               uint8            `json:"base_decimals"`
	Padding2                   [6]uint8         `json:"padding2"`
	RegistrationTime           int64            `json:"registration_time"`
	FeesSettled                codec.I80F48     `json:"fees_settled"`
	FeePenalty                 float32          `json:"fee_penalty"`
	SettleFeeFlat              float32          `json:"settle_fee_flat"`
	SettleFeeAmountThreshold   float32          `json:"settle_fee_amount_threshold"`
	SettleFeeFractionLowHealth float32          `json:"settle_fee_fraction_low_health"`
	Reserved                   [92]uint8        `json:"reserved"`
}

func (PerpMarket) AccountName() string    { return "PerpMarket" }
func (PerpMarket) Discriminator() [8]byte { return PerpMarketDiscriminator }
func (m *PerpMarket) NameString() string  { return trimName(m.Name[:]) }

type Serum3Market struct {
	Group               solana.PublicKey  `json:"group"`
	BaseTokenIndex      TokenIndex        `json:"base_token_index"`
	QuoteTokenIndex     TokenIndex        `json:"quote_token_index"`
	Padding1            [4]uint8          `json:"padding1"`
	Name                [16]uint8         `json:"name"`
	SerumProgram        solana.PublicKey  `json:"serum_program"`
	SerumMarketExternal solana.PublicKey  `json:"serum_market_external"`
	MarketIndex         Serum3MarketIndex `json:"market_index"`
	Bump                uint8             `json:"bump"`
	Padding2            [5]uint8          `json:"padding2"`
	RegistrationTime    int64             `json:"registration_time"`
	Reserved            [128]uint8        `json:"reserved"`
}

func (Serum3Market) AccountName() string    { return "Serum3Market" }
func (Serum3Market) Discriminator() [8]byte { return Serum3MarketDiscriminator }
func (m *Serum3Market) NameString() string  { return trimName(m.Name[:]) }

type Serum3MarketIndexReservation struct {
	Group       solana.PublicKey  `json:"group"`
	MarketIndex Serum3MarketIndex `json:"market_index"`
	Reserved    [38]uint8         `json:"reserved"`
}

func (Serum3MarketIndexReservation) AccountName() string { return "Serum3MarketIndexReservation" }
func (Serum3MarketIndexReservation) Discriminator() [8]byte {
	return Serum3MarketIndexReservationDiscriminator
}

type StubOracle struct {
	Group       solana.PublicKey `json:"group"`
	Mint        solana.PublicKey `json:"mint"`
	Price       codec.I80F48     `json:"price"`
	LastUpdated int64            `json:"last_updated"`
	Reserved    [128]uint8       `json:"reserved"`
}

func (StubOracle) AccountName() string    { return "StubOracle" }
func (StubOracle) Discriminator() [8]byte { return StubOracleDiscriminator }

type accountKind struct {
	name          string
	discriminator [8]byte
	alloc         func() Account
}

var accountKinds = []accountKind{
	{"Bank", BankDiscriminator, func() Account { return new(Bank) }},
	{"BookSide", BookSideDiscriminator, func() Account { return new(BookSide) }},
	{"EventQueue", EventQueueDiscriminator, func() Account { return new(EventQueue) }},
	{"Group", GroupDiscriminator, func() Account { return new(Group) }},
	{"MangoAccount", MangoAccountDiscriminator, func() Account { return new(MangoAccount) }},
	{"MintInfo", MintInfoDiscriminator, func() Account { return new(MintInfo) }},
	{"PerpMarket", PerpMarketDiscriminator, func() Account { return new(PerpMarket) }},
	{"Serum3Market", Serum3MarketDiscriminator, func() Account { return new(Serum3Market) }},
	{"Serum3MarketIndexReservation", Serum3MarketIndexReservationDiscriminator, func() Account { return new(Serum3MarketIndexReservation) }},
	{"StubOracle", StubOracleDiscriminator, func() Account { return new(StubOracle) }},
}

// AccountKinds returns the names of every decodable account kind, sorted.
func AccountKinds() []string {
	names := lo.Map(accountKinds, func(k accountKind, _ int) string { return k.name })
	sort.Strings(names)
	return names
}

// NewAccount returns a zero value of the named kind, ready to decode into.
func NewAccount(name string) (Account, error) {
	kind, ok := lo.Find(accountKinds, func(k accountKind) bool { return k.name == name })
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountKind, name)
	}
	return kind.alloc(), nil
}

// IdentifyAccount names the account kind whose discriminator prefixes data.
func IdentifyAccount(data []byte) (string, bool) {
	if len(data) < codec.DiscriminatorSize {
		return "", false
	}
	kind, ok := lo.Find(accountKinds, func(k accountKind) bool {
		return bytes.Equal(data[:codec.DiscriminatorSize], k.discriminator[:])
	})
	return kind.name, ok
}

// DecodeAnyAccount decodes data as whichever account kind its discriminator names.
// The result is a pointer to the concrete account struct.
func DecodeAnyAccount(data []byte) (Account, error) {
	name, ok := IdentifyAccount(data)
	if !ok {
		if len(data) < codec.DiscriminatorSize {
			return nil, fmt.Errorf("decode account: %w: need %d bytes, %d remaining",
				codec.ErrTruncatedInput, codec.DiscriminatorSize, len(data))
		}
		return nil, fmt.Errorf("decode account: %w: unknown tag %x", codec.ErrDiscriminatorMismatch, data[:codec.DiscriminatorSize])
	}
	return DecodeNamedAccount(name, data)
}

// DecodeKind decodes data as the named kind, or as whichever kind its
// discriminator names when kind is blank.
func DecodeKind(kind string, data []byte) (Account, error) {
	if kind = strings.TrimSpace(kind); kind != "" {
		return DecodeNamedAccount(kind, data)
	}
	return DecodeAnyAccount(data)
}

// DecodeNamedAccount decodes data as the named kind.
func DecodeNamedAccount(name string, data []byte) (Account, error) {
	acc, err := NewAccount(name)
	if err != nil {
		return nil, err
	}
	if err := codec.DecodeAccount(data, acc.Discriminator(), acc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return acc, nil
}

func trimName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}
