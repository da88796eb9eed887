package mango

import "github.com/coldbell/mango-v4-go/internal/codec"

// Every enum below is a one-byte tag with unit variants. The variant order is
// the wire discriminant and must not be rearranged.

type bookSideTypeVariants struct{}

func (bookSideTypeVariants) Name() string       { return "BookSideType" }
func (bookSideTypeVariants) Variants() []string { return []string{"Bids", "Asks"} }

type BookSideType = codec.Unit[bookSideTypeVariants]

const (
	BookSideTypeBids BookSideType = iota
	BookSideTypeAsks
)

type eventTypeVariants struct{}

func (eventTypeVariants) Name() string       { return "EventType" }
func (eventTypeVariants) Variants() []string { return []string{"Fill", "Out", "Liquidate"} }

type EventType = codec.Unit[eventTypeVariants]

const (
	EventTypeFill EventType = iota
	EventTypeOut
	EventTypeLiquidate
)

type flashLoanTypeVariants struct{}

func (flashLoanTypeVariants) Name() string       { return "FlashLoanType" }
func (flashLoanTypeVariants) Variants() []string { return []string{"Unknown", "Swap"} }

type FlashLoanType = codec.Unit[flashLoanTypeVariants]

const (
	FlashLoanTypeUnknown FlashLoanType = iota
	FlashLoanTypeSwap
)

type healthTypeVariants struct{}

func (healthTypeVariants) Name() string       { return "HealthType" }
func (healthTypeVariants) Variants() []string { return []string{"Init", "Maint"} }

type HealthType = codec.Unit[healthTypeVariants]

const (
	HealthTypeInit HealthType = iota
	HealthTypeMaint
)

type loanOriginationFeeInstructionVariants struct{}

func (loanOriginationFeeInstructionVariants) Name() string {
	return "LoanOriginationFeeInstruction"
}

func (loanOriginationFeeInstructionVariants) Variants() []string {
	return []string{
		"Unknown",
		"LiqTokenBankruptcy",
		"LiqTokenWithToken",
		"Serum3LiqForceCancelOrders",
		"Serum3PlaceOrder",
		"Serum3SettleFunds",
		"TokenWithdraw",
	}
}

type LoanOriginationFeeInstruction = codec.Unit[loanOriginationFeeInstructionVariants]

const (
	LoanOriginationFeeUnknown LoanOriginationFeeInstruction = iota
	LoanOriginationFeeLiqTokenBankruptcy
	LoanOriginationFeeLiqTokenWithToken
	LoanOriginationFeeSerum3LiqForceCancelOrders
	LoanOriginationFeeSerum3PlaceOrder
	LoanOriginationFeeSerum3SettleFunds
	LoanOriginationFeeTokenWithdraw
)

type nodeTagVariants struct{}

func (nodeTagVariants) Name() string { return "NodeTag" }
func (nodeTagVariants) Variants() []string {
	return []string{"Uninitialized", "InnerNode", "LeafNode", "FreeNode", "LastFreeNode"}
}

type NodeTag = codec.Unit[nodeTagVariants]

const (
	NodeTagUninitialized NodeTag = iota
	NodeTagInnerNode
	NodeTagLeafNode
	NodeTagFreeNode
	NodeTagLastFreeNode
)

type oracleTypeVariants struct{}

func (oracleTypeVariants) Name() string { return "OracleType" }
func (oracleTypeVariants) Variants() []string {
	return []string{"Pyth", "Stub", "SwitchboardV1", "SwitchboardV2"}
}

type OracleType = codec.Unit[oracleTypeVariants]

const (
	OracleTypePyth OracleType = iota
	OracleTypeStub
	OracleTypeSwitchboardV1
	OracleTypeSwitchboardV2
)

type orderTypeVariants struct{}

func (orderTypeVariants) Name() string { return "OrderType" }
func (orderTypeVariants) Variants() []string {
	return []string{"Limit", "ImmediateOrCancel", "PostOnly", "Market", "PostOnlySlide"}
}

type OrderType = codec.Unit[orderTypeVariants]

const (
	OrderTypeLimit OrderType = iota
	OrderTypeImmediateOrCancel
	OrderTypePostOnly
	OrderTypeMarket
	OrderTypePostOnlySlide
)

type serum3SelfTradeBehaviorVariants struct{}

func (serum3SelfTradeBehaviorVariants) Name() string { return "Serum3SelfTradeBehavior" }
func (serum3SelfTradeBehaviorVariants) Variants() []string {
	return []string{"DecrementTake", "CancelProvide", "AbortTransaction"}
}

type Serum3SelfTradeBehavior = codec.Unit[serum3SelfTradeBehaviorVariants]

const (
	Serum3SelfTradeDecrementTake Serum3SelfTradeBehavior = iota
	Serum3SelfTradeCancelProvide
	Serum3SelfTradeAbortTransaction
)

type serum3OrderTypeVariants struct{}

func (serum3OrderTypeVariants) Name() string { return "Serum3OrderType" }
func (serum3OrderTypeVariants) Variants() []string {
	return []string{"Limit", "ImmediateOrCancel", "PostOnly"}
}

type Serum3OrderType = codec.Unit[serum3OrderTypeVariants]

const (
	Serum3OrderTypeLimit Serum3OrderType = iota
	Serum3OrderTypeImmediateOrCancel
	Serum3OrderTypePostOnly
)

type serum3SideVariants struct{}

func (serum3SideVariants) Name() string       { return "Serum3Side" }
func (serum3SideVariants) Variants() []string { return []string{"Bid", "Ask"} }

type Serum3Side = codec.Unit[serum3SideVariants]

const (
	Serum3SideBid Serum3Side = iota
	Serum3SideAsk
)

type sideVariants struct{}

func (sideVariants) Name() string       { return "Side" }
func (sideVariants) Variants() []string { return []string{"Bid", "Ask"} }

type Side = codec.Unit[sideVariants]

const (
	SideBid Side = iota
	SideAsk
)

// EnumTypes lists every enum carried on the wire, keyed by type name.
func EnumTypes() map[string][]string {
	enums := []codec.Enum{
		BookSideTypeBids,
		EventTypeFill,
		FlashLoanTypeUnknown,
		HealthTypeInit,
		LoanOriginationFeeUnknown,
		NodeTagUninitialized,
		OracleTypePyth,
		OrderTypeLimit,
		Serum3SelfTradeDecrementTake,
		Serum3OrderTypeLimit,
		Serum3SideBid,
		SideBid,
	}
	out := make(map[string][]string, len(enums))
	for _, e := range enums {
		out[e.EnumName()] = e.Variants()
	}
	return out
}
