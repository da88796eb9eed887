package mango

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/mango-v4-go/internal/codec"
)

type (
	TokenIndex        uint16
	Serum3MarketIndex uint16
	PerpMarketIndex   uint16
)

// Unused marks a free slot in the token, serum3 and perp position arrays.
const Unused = 1<<16 - 1

type OracleConfig struct {
	ConfFilter codec.I80F48 `json:"conf_filter"`
}

type InterestRateParams struct {
	Util0            float32 `json:"util0"`
	Rate0            float32 `json:"rate0"`
	Util1            float32 `json:"util1"`
	Rate1            float32 `json:"rate1"`
	MaxRate          float32 `json:"max_rate"`
	AdjustmentFactor float32 `json:"adjustment_factor"`
}

// Equity is the return payload of compute_account_data.
type Equity struct {
	Tokens []TokenEquity `json:"tokens"`
	Perps  []PerpEquity  `json:"perps"`
}

type TokenEquity struct {
	TokenIndex TokenIndex   `json:"token_index"`
	Value      codec.I80F48 `json:"value"`
}

type PerpEquity struct {
	PerpMarketIndex PerpMarketIndex `json:"perp_market_index"`
	Value           codec.I80F48    `json:"value"`
}

type FlashLoanTokenDetail struct {
	TokenIndex         TokenIndex   `json:"token_index"`
	ChangeAmount       codec.Int128 `json:"change_amount"`
	Loan               codec.Int128 `json:"loan"`
	LoanOriginationFee codec.Int128 `json:"loan_origination_fee"`
	DepositIndex       codec.Int128 `json:"deposit_index"`
	BorrowIndex        codec.Int128 `json:"borrow_index"`
	Price              codec.Int128 `json:"price"`
}

type TokenInfo struct {
	TokenIndex        TokenIndex   `json:"token_index"`
	MaintAssetWeight  codec.I80F48 `json:"maint_asset_weight"`
	InitAssetWeight   codec.I80F48 `json:"init_asset_weight"`
	MaintLiabWeight   codec.I80F48 `json:"maint_liab_weight"`
	InitLiabWeight    codec.I80F48 `json:"init_liab_weight"`
	OraclePrice       codec.I80F48 `json:"oracle_price"`
	Balance           codec.I80F48 `json:"balance"`
	Serum3MaxReserved codec.I80F48 `json:"serum3_max_reserved"`
}

type Serum3Info struct {
	Reserved    codec.I80F48      `json:"reserved"`
	BaseIndex   uint64            `json:"base_index"`
	QuoteIndex  uint64            `json:"quote_index"`
	MarketIndex Serum3MarketIndex `json:"market_index"`
}

type PerpInfo struct {
	PerpMarketIndex  PerpMarketIndex `json:"perp_market_index"`
	MaintAssetWeight codec.I80F48    `json:"maint_asset_weight"`
	InitAssetWeight  codec.I80F48    `json:"init_asset_weight"`
	MaintLiabWeight  codec.I80F48    `json:"maint_liab_weight"`
	InitLiabWeight   codec.I80F48    `json:"init_liab_weight"`
	Base             codec.I80F48    `json:"base"`
	Quote            codec.I80F48    `json:"quote"`
	OraclePrice      codec.I80F48    `json:"oracle_price"`
	HasOpenOrders    bool            `json:"has_open_orders"`
	TrustedMarket    bool            `json:"trusted_market"`
}

type HealthCache struct {
	TokenInfos      []TokenInfo  `json:"token_infos"`
	Serum3Infos     []Serum3Info `json:"serum3_infos"`
	PerpInfos       []PerpInfo   `json:"perp_infos"`
	BeingLiquidated bool         `json:"being_liquidated"`
}

type TokenPosition struct {
	IndexedPosition           codec.I80F48 `json:"indexed_position"`
	TokenIndex                TokenIndex   `json:"token_index"`
	InUseCount                uint8        `json:"in_use_count"`
	Padding                   [5]uint8     `json:"padding"`
	Reserved                  [16]uint8    `json:"reserved"`
	PreviousIndex             codec.I80F48 `json:"previous_index"`
	CumulativeDepositInterest float32      `json:"cumulative_deposit_interest"`
	CumulativeBorrowInterest  float32      `json:"cumulative_borrow_interest"`
}

func (p TokenPosition) IsActive() bool {
	return p.TokenIndex != Unused
}

type Serum3Orders struct {
	OpenOrders             solana.PublicKey  `json:"open_orders"`
	BaseBorrowsWithoutFee  uint64            `json:"base_borrows_without_fee"`
	QuoteBorrowsWithoutFee uint64            `json:"quote_borrows_without_fee"`
	MarketIndex            Serum3MarketIndex `json:"market_index"`
	BaseTokenIndex         TokenIndex        `json:"base_token_index"`
	QuoteTokenIndex        TokenIndex        `json:"quote_token_index"`
	Padding                [2]uint8          `json:"padding"`
	Reserved               [64]uint8         `json:"reserved"`
}

func (o Serum3Orders) IsActive() bool {
	return o.MarketIndex != Unused
}

type PerpPosition struct {
	MarketIndex         PerpMarketIndex `json:"market_index"`
	Padding             [6]uint8        `json:"padding"`
	BasePositionLots    int64           `json:"base_position_lots"`
	QuotePositionNative codec.I80F48    `json:"quote_position_native"`
	QuoteEntryNative    int64           `json:"quote_entry_native"`
	QuoteRunningNative  int64           `json:"quote_running_native"`
	LongSettledFunding  codec.I80F48    `json:"long_settled_funding"`
	ShortSettledFunding codec.I80F48    `json:"short_settled_funding"`
	BidsBaseLots        int64           `json:"bids_base_lots"`
	AsksBaseLots        int64           `json:"asks_base_lots"`
	TakerBaseLots       int64           `json:"taker_base_lots"`
	TakerQuoteLots      int64           `json:"taker_quote_lots"`
	Reserved            [64]uint8       `json:"reserved"`
}

func (p PerpPosition) IsActive() bool {
	return p.MarketIndex != Unused
}

type PerpOpenOrder struct {
	OrderSide     Side            `json:"order_side"`
	Padding1      [1]uint8        `json:"padding1"`
	OrderMarket   PerpMarketIndex `json:"order_market"`
	Padding2      [4]uint8        `json:"padding2"`
	ClientOrderID uint64          `json:"client_order_id"`
	OrderID       codec.Int128    `json:"order_id"`
	Reserved      [64]uint8       `json:"reserved"`
}

func (o PerpOpenOrder) IsActive() bool {
	return o.OrderMarket != Unused
}

// Book nodes and queue events share one fixed slot size so that AnyNode and
// AnyEvent can be re-read as their concrete variant.
const (
	NodeSize  = 96
	EventSize = 208
)

type InnerNode struct {
	Tag                 uint32       `json:"tag"`
	PrefixLen           uint32       `json:"prefix_len"`
	Key                 codec.Int128 `json:"key"`
	Children            [2]uint32    `json:"children"`
	ChildEarliestExpiry [2]uint64    `json:"child_earliest_expiry"`
	Reserved            [48]uint8    `json:"reserved"`
}

type LeafNode struct {
	Tag           uint32           `json:"tag"`
	OwnerSlot     uint8            `json:"owner_slot"`
	OrderType     OrderType        `json:"order_type"`
	Padding       [1]uint8         `json:"padding"`
	TimeInForce   uint8            `json:"time_in_force"`
	Key           codec.Int128     `json:"key"`
	Owner         solana.PublicKey `json:"owner"`
	Quantity      int64            `json:"quantity"`
	ClientOrderID uint64           `json:"client_order_id"`
	Timestamp     uint64           `json:"timestamp"`
	Reserved      [16]uint8        `json:"reserved"`
}

type AnyNode struct {
	Tag  uint32    `json:"tag"`
	Data [92]uint8 `json:"data"`
}

// Kind returns the slot tag, or false when it is not a known NodeTag.
func (n AnyNode) Kind() (NodeTag, bool) {
	tag := NodeTag(n.Tag)
	if n.Tag > 0xff || !tag.Valid() {
		return 0, false
	}
	return tag, true
}

func (n AnyNode) AsInner() (InnerNode, error) {
	var out InnerNode
	if err := recast(n, uint32(NodeTagInnerNode), n.Tag, &out); err != nil {
		return InnerNode{}, err
	}
	return out, nil
}

func (n AnyNode) AsLeaf() (LeafNode, error) {
	var out LeafNode
	if err := recast(n, uint32(NodeTagLeafNode), n.Tag, &out); err != nil {
		return LeafNode{}, err
	}
	return out, nil
}

type EventQueueHeader struct {
	Head   uint32 `json:"head"`
	Count  uint32 `json:"count"`
	SeqNum uint64 `json:"seq_num"`
}

type AnyEvent struct {
	EventType uint8      `json:"event_type"`
	Padding   [207]uint8 `json:"padding"`
}

func (e AnyEvent) AsFill() (FillEvent, error) {
	var out FillEvent
	if err := recast(e, uint32(EventTypeFill), uint32(e.EventType), &out); err != nil {
		return FillEvent{}, err
	}
	return out, nil
}

func (e AnyEvent) AsOut() (OutEvent, error) {
	var out OutEvent
	if err := recast(e, uint32(EventTypeOut), uint32(e.EventType), &out); err != nil {
		return OutEvent{}, err
	}
	return out, nil
}

type FillEvent struct {
	EventType          uint8            `json:"event_type"`
	TakerSide          Side             `json:"taker_side"`
	MakerOut           bool             `json:"maker_out"`
	MakerSlot          uint8            `json:"maker_slot"`
	MarketFeesApplied  bool             `json:"market_fees_applied"`
	Padding            [3]uint8         `json:"padding"`
	Timestamp          uint64           `json:"timestamp"`
	SeqNum             uint64           `json:"seq_num"`
	Maker              solana.PublicKey `json:"maker"`
	MakerOrderID       codec.Int128     `json:"maker_order_id"`
	MakerClientOrderID uint64           `json:"maker_client_order_id"`
	MakerFee           codec.I80F48     `json:"maker_fee"`
	MakerTimestamp     uint64           `json:"maker_timestamp"`
	Taker              solana.PublicKey `json:"taker"`
	TakerOrderID       codec.Int128     `json:"taker_order_id"`
	TakerClientOrderID uint64           `json:"taker_client_order_id"`
	TakerFee           codec.I80F48     `json:"taker_fee"`
	Price              int64            `json:"price"`
	Quantity           int64            `json:"quantity"`
	Reserved           [16]uint8        `json:"reserved"`
}

type OutEvent struct {
	EventType uint8            `json:"event_type"`
	Side      Side             `json:"side"`
	OwnerSlot uint8            `json:"owner_slot"`
	Padding0  [5]uint8         `json:"padding0"`
	Timestamp uint64           `json:"timestamp"`
	SeqNum    uint64           `json:"seq_num"`
	Owner     solana.PublicKey `json:"owner"`
	Quantity  int64            `json:"quantity"`
	Padding1  [144]uint8       `json:"padding1"`
}

// recast re-reads a fixed slot as one of its concrete variants.
func recast(slot any, wantTag, gotTag uint32, out any) error {
	if gotTag != wantTag {
		return fmt.Errorf("%w: slot tag %d, want %d", ErrVariantMismatch, gotTag, wantTag)
	}
	raw, err := codec.Marshal(slot)
	if err != nil {
		return err
	}
	return codec.Unmarshal(raw, out)
}
