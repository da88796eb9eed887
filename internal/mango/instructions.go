package mango

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/mango-v4-go/internal/codec"
)

// Account role names used by the instruction templates.
const (
	RoleGroup               = "group"
	RoleCreator             = "creator"
	RoleInsuranceMint       = "insurance_mint"
	RoleInsuranceVault      = "insurance_vault"
	RolePayer               = "payer"
	RoleTokenProgram        = "token_program"
	RoleSystemProgram       = "system_program"
	RoleRent                = "rent"
	RoleAdmin               = "admin"
	RoleSolDestination      = "sol_destination"
	RoleMint                = "mint"
	RoleBank                = "bank"
	RoleVault               = "vault"
	RoleMintInfo            = "mint_info"
	RoleOracle              = "oracle"
	RoleFastListingAdmin    = "fast_listing_admin"
	RoleExistingBank        = "existing_bank"
	RoleDustVault           = "dust_vault"
	RoleInstructions        = "instructions"
	RoleAccount             = "account"
	RoleOwner               = "owner"
	RoleTokenAccount        = "token_account"
	RoleTokenAuthority      = "token_authority"
	RoleSerumProgram        = "serum_program"
	RoleSerumMarketExternal = "serum_market_external"
	RoleSerumMarket         = "serum_market"
	RoleIndexReservation    = "index_reservation"
	RoleQuoteBank           = "quote_bank"
	RoleBaseBank            = "base_bank"
	RoleOpenOrders          = "open_orders"
	RoleMarketBids          = "market_bids"
	RoleMarketAsks          = "market_asks"
	RoleMarketEventQueue    = "market_event_queue"
	RoleMarketRequestQueue  = "market_request_queue"
	RoleMarketBaseVault     = "market_base_vault"
	RoleMarketQuoteVault    = "market_quote_vault"
	RoleMarketVaultSigner   = "market_vault_signer"
	RolePayerBank           = "payer_bank"
	RolePayerVault          = "payer_vault"
	RoleQuoteVault          = "quote_vault"
	RoleBaseVault           = "base_vault"
	RoleLiqor               = "liqor"
	RoleLiqorOwner          = "liqor_owner"
	RoleLiqee               = "liqee"
	RoleLiabMintInfo        = "liab_mint_info"
	RolePerpMarket          = "perp_market"
	RoleBids                = "bids"
	RoleAsks                = "asks"
	RoleEventQueue          = "event_queue"
	RoleAccountA            = "account_a"
	RoleAccountB            = "account_b"
	RoleAddressLookupTable  = "address_lookup_table"
)

// AccountRole is one positional slot of an instruction's account list.
type AccountRole struct {
	Name     string `json:"name"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func readonly(name string) AccountRole       { return AccountRole{Name: name} }
func writable(name string) AccountRole       { return AccountRole{Name: name, Writable: true} }
func signer(name string) AccountRole         { return AccountRole{Name: name, Signer: true} }
func writableSigner(name string) AccountRole { return AccountRole{Name: name, Signer: true, Writable: true} }

type GroupCreateArgs struct {
	GroupNum uint32 `json:"group_num"`
	Testing  uint8  `json:"testing"`
	Version  uint8  `json:"version"`
}

type GroupEditArgs struct {
	AdminOpt            *solana.PublicKey `json:"admin_opt"`
	FastListingAdminOpt *solana.PublicKey `json:"fast_listing_admin_opt"`
	TestingOpt          *uint8            `json:"testing_opt"`
	VersionOpt          *uint8            `json:"version_opt"`
}

type TokenRegisterArgs struct {
	TokenIndex             TokenIndex         `json:"token_index"`
	Name                   string             `json:"name"`
	OracleConfig           OracleConfig       `json:"oracle_config"`
	InterestRateParams     InterestRateParams `json:"interest_rate_params"`
	LoanFeeRate            float32            `json:"loan_fee_rate"`
	LoanOriginationFeeRate float32            `json:"loan_origination_fee_rate"`
	MaintAssetWeight       float32            `json:"maint_asset_weight"`
	InitAssetWeight        float32            `json:"init_asset_weight"`
	MaintLiabWeight        float32            `json:"maint_liab_weight"`
	InitLiabWeight         float32            `json:"init_liab_weight"`
	LiquidationFee         float32            `json:"liquidation_fee"`
}

type TokenRegisterTrustlessArgs struct {
	TokenIndex TokenIndex `json:"token_index"`
	Name       string     `json:"name"`
}

type TokenEditArgs struct {
	OracleOpt                 *solana.PublicKey   `json:"oracle_opt"`
	OracleConfigOpt           *OracleConfig       `json:"oracle_config_opt"`
	GroupInsuranceFundOpt     *bool               `json:"group_insurance_fund_opt"`
	InterestRateParamsOpt     *InterestRateParams `json:"interest_rate_params_opt"`
	LoanFeeRateOpt            *float32            `json:"loan_fee_rate_opt"`
	LoanOriginationFeeRateOpt *float32            `json:"loan_origination_fee_rate_opt"`
	MaintAssetWeightOpt       *float32            `json:"maint_asset_weight_opt"`
	InitAssetWeightOpt        *float32            `json:"init_asset_weight_opt"`
	MaintLiabWeightOpt        *float32            `json:"maint_liab_weight_opt"`
	InitLiabWeightOpt         *float32            `json:"init_liab_weight_opt"`
	LiquidationFeeOpt         *float32            `json:"liquidation_fee_opt"`
}

type TokenAddBankArgs struct {
	TokenIndex TokenIndex `json:"token_index"`
	BankNum    uint32     `json:"bank_num"`
}

type AccountCreateArgs struct {
	AccountNum  uint32 `json:"account_num"`
	TokenCount  uint8  `json:"token_count"`
	Serum3Count uint8  `json:"serum3_count"`
	PerpCount   uint8  `json:"perp_count"`
	PerpOOCount uint8  `json:"perp_oo_count"`
	Name        string `json:"name"`
}

type AccountExpandArgs struct {
	TokenCount  uint8 `json:"token_count"`
	Serum3Count uint8 `json:"serum3_count"`
	PerpCount   uint8 `json:"perp_count"`
	PerpOOCount uint8 `json:"perp_oo_count"`
}

type AccountEditArgs struct {
	NameOpt     *string           `json:"name_opt"`
	DelegateOpt *solana.PublicKey `json:"delegate_opt"`
}

type StubOracleCreateArgs struct {
	Price codec.I80F48 `json:"price"`
}

type StubOracleSetArgs struct {
	Price codec.I80F48 `json:"price"`
}

type TokenDepositArgs struct {
	Amount uint64 `json:"amount"`
}

type TokenDepositIntoExistingArgs struct {
	Amount uint64 `json:"amount"`
}

type TokenWithdrawArgs struct {
	Amount      uint64 `json:"amount"`
	AllowBorrow bool   `json:"allow_borrow"`
}

type FlashLoanBeginArgs struct {
	LoanAmounts []uint64 `json:"loan_amounts"`
}

type FlashLoanEndArgs struct {
	FlashLoanType FlashLoanType `json:"flash_loan_type"`
}

type Serum3RegisterMarketArgs struct {
	MarketIndex Serum3MarketIndex `json:"market_index"`
	Name        string            `json:"name"`
}

type Serum3PlaceOrderArgs struct {
	Side                           Serum3Side              `json:"side"`
	LimitPrice                     uint64                  `json:"limit_price"`
	MaxBaseQty                     uint64                  `json:"max_base_qty"`
	MaxNativeQuoteQtyIncludingFees uint64                  `json:"max_native_quote_qty_including_fees"`
	SelfTradeBehavior              Serum3SelfTradeBehavior `json:"self_trade_behavior"`
	OrderType                      Serum3OrderType         `json:"order_type"`
	ClientOrderID                  uint64                  `json:"client_order_id"`
	Limit                          uint16                  `json:"limit"`
}

type Serum3CancelOrderArgs struct {
	Side    Serum3Side    `json:"side"`
	OrderID codec.Uint128 `json:"order_id"`
}

type Serum3CancelAllOrdersArgs struct {
	Limit uint8 `json:"limit"`
}

type Serum3LiqForceCancelOrdersArgs struct {
	Limit uint8 `json:"limit"`
}

type LiqTokenWithTokenArgs struct {
	AssetTokenIndex TokenIndex   `json:"asset_token_index"`
	LiabTokenIndex  TokenIndex   `json:"liab_token_index"`
	MaxLiabTransfer codec.I80F48 `json:"max_liab_transfer"`
}

type LiqTokenBankruptcyArgs struct {
	MaxLiabTransfer codec.I80F48 `json:"max_liab_transfer"`
}

type TokenLiqWithTokenArgs struct {
	AssetTokenIndex TokenIndex   `json:"asset_token_index"`
	LiabTokenIndex  TokenIndex   `json:"liab_token_index"`
	MaxLiabTransfer codec.I80F48 `json:"max_liab_transfer"`
}

type TokenLiqBankruptcyArgs struct {
	MaxLiabTransfer codec.I80F48 `json:"max_liab_transfer"`
}

type PerpCreateMarketArgs struct {
	PerpMarketIndex            PerpMarketIndex `json:"perp_market_index"`
	Name                       string          `json:"name"`
	OracleConfig               OracleConfig    `json:"oracle_config"`
	BaseDecimals               uint8           `json:"base_decimals"`
	QuoteLotSize               int64           `json:"quote_lot_size"`
	BaseLotSize                int64           `json:"base_lot_size"`
	MaintAssetWeight           float32         `json:"maint_asset_weight"`
	InitAssetWeight            float32         `json:"init_asset_weight"`
	MaintLiabWeight            float32         `json:"maint_liab_weight"`
	InitLiabWeight             float32         `json:"init_liab_weight"`
	LiquidationFee             float32         `json:"liquidation_fee"`
	MakerFee                   float32         `json:"maker_fee"`
	TakerFee                   float32         `json:"taker_fee"`
	MinFunding                 float32         `json:"min_funding"`
	MaxFunding                 float32         `json:"max_funding"`
	ImpactQuantity             int64           `json:"impact_quantity"`
	GroupInsuranceFund         bool            `json:"group_insurance_fund"`
	TrustedMarket              bool            `json:"trusted_market"`
	FeePenalty                 float32         `json:"fee_penalty"`
	SettleFeeFlat              float32         `json:"settle_fee_flat"`
	SettleFeeAmountThreshold   float32         `json:"settle_fee_amount_threshold"`
	SettleFeeFractionLowHealth float32         `json:"settle_fee_fraction_low_health"`
	SettleTokenIndex           TokenIndex      `json:"settle_token_index"`
}

type PerpEditMarketArgs struct {
	OracleOpt                     *solana.PublicKey `json:"oracle_opt"`
	OracleConfigOpt               *OracleConfig     `json:"oracle_config_opt"`
	BaseDecimalsOpt               *uint8            `json:"base_decimals_opt"`
	MaintAssetWeightOpt           *float32          `json:"maint_asset_weight_opt"`
	InitAssetWeightOpt            *float32          `json:"init_asset_weight_opt"`
	MaintLiabWeightOpt            *float32          `json:"maint_liab_weight_opt"`
	InitLiabWeightOpt             *float32          `json:"init_liab_weight_opt"`
	LiquidationFeeOpt             *float32          `json:"liquidation_fee_opt"`
	MakerFeeOpt                   *float32          `json:"maker_fee_opt"`
	TakerFeeOpt                   *float32          `json:"taker_fee_opt"`
	MinFundingOpt                 *float32          `json:"min_funding_opt"`
	MaxFundingOpt                 *float32          `json:"max_funding_opt"`
	ImpactQuantityOpt             *int64            `json:"impact_quantity_opt"`
	GroupInsuranceFundOpt         *bool             `json:"group_insurance_fund_opt"`
	TrustedMarketOpt              *bool             `json:"trusted_market_opt"`
	FeePenaltyOpt                 *float32          `json:"fee_penalty_opt"`
	SettleFeeFlatOpt              *float32          `json:"settle_fee_flat_opt"`
	SettleFeeAmountThresholdOpt   *float32          `json:"settle_fee_amount_threshold_opt"`
	SettleFeeFractionLowHealthOpt *float32          `json:"settle_fee_fraction_low_health_opt"`
}

type PerpPlaceOrderArgs struct {
	Side            Side      `json:"side"`
	PriceLots       int64     `json:"price_lots"`
	MaxBaseLots     int64     `json:"max_base_lots"`
	MaxQuoteLots    int64     `json:"max_quote_lots"`
	ClientOrderID   uint64    `json:"client_order_id"`
	OrderType       OrderType `json:"order_type"`
	ExpiryTimestamp uint64    `json:"expiry_timestamp"`
	Limit           uint8     `json:"limit"`
}

type PerpCancelOrderArgs struct {
	OrderID codec.Int128 `json:"order_id"`
}

type PerpCancelOrderByClientOrderIDArgs struct {
	ClientOrderID uint64 `json:"client_order_id"`
}

type PerpCancelAllOrdersArgs struct {
	Limit uint8 `json:"limit"`
}

type PerpCancelAllOrdersBySideArgs struct {
	SideOption *Side `json:"side_option"`
	Limit      uint8 `json:"limit"`
}

type PerpConsumeEventsArgs struct {
	Limit uint64 `json:"limit"`
}

type PerpSettleFeesArgs struct {
	MaxSettleAmount uint64 `json:"max_settle_amount"`
}

type PerpLiqBasePositionArgs struct {
	MaxBaseTransfer int64 `json:"max_base_transfer"`
}

type PerpLiqForceCancelOrdersArgs struct {
	Limit uint8 `json:"limit"`
}

type PerpLiqBankruptcyArgs struct {
	MaxLiabTransfer uint64 `json:"max_liab_transfer"`
}

type ALTSetArgs struct {
	Index uint8 `json:"index"`
}

type ALTExtendArgs struct {
	Index        uint8              `json:"index"`
	NewAddresses []solana.PublicKey `json:"new_addresses"`
}

// InstructionDef fully determines how one program operation is encoded.
// Args is nil for operations that take no arguments.
type InstructionDef struct {
	Name     string
	Opcode   [8]byte
	Accounts []AccountRole
	Args     reflect.Type
}

var instructionDefs = []InstructionDef{
	{
		Name:   "group_create",
		Opcode: [8]byte{0xe2, 0x52, 0xef, 0x77, 0x6b, 0x88, 0xa6, 0xf0},
		Args:   reflect.TypeOf(GroupCreateArgs{}),
		Accounts: []AccountRole{
			writable(RoleGroup),
			signer(RoleCreator),
			readonly(RoleInsuranceMint),
			writable(RoleInsuranceVault),
			writableSigner(RolePayer),
			readonly(RoleTokenProgram),
			readonly(RoleSystemProgram),
			readonly(RoleRent),
		},
	},
	{
		Name:   "group_edit",
		Opcode: [8]byte{0x08, 0x58, 0xb7, 0xf9, 0xa6, 0x73, 0x37, 0xe3},
		Args:   reflect.TypeOf(GroupEditArgs{}),
		Accounts: []AccountRole{
			writable(RoleGroup),
			signer(RoleAdmin),
		},
	},
	{
		Name:   "group_close",
		Opcode: [8]byte{0x43, 0x7e, 0x0a, 0xe0, 0x09, 0x79, 0x62, 0x7c},
		Accounts: []AccountRole{
			writable(RoleGroup),
			signer(RoleAdmin),
			writable(RoleInsuranceVault),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "token_register",
		Opcode: [8]byte{0x6d, 0x1c, 0x87, 0x3a, 0xa2, 0xd6, 0x71, 0x26},
		Args:   reflect.TypeOf(TokenRegisterArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			readonly(RoleMint),
			writable(RoleBank),
			writable(RoleVault),
			writable(RoleMintInfo),
			readonly(RoleOracle),
			writableSigner(RolePayer),
			readonly(RoleTokenProgram),
			readonly(RoleSystemProgram),
			readonly(RoleRent),
		},
	},
	{
		Name:   "token_register_trustless",
		Opcode: [8]byte{0x38, 0x2d, 0x23, 0x0d, 0xfd, 0xfe, 0x3a, 0x50},
		Args:   reflect.TypeOf(TokenRegisterTrustlessArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleFastListingAdmin),
			readonly(RoleMint),
			writable(RoleBank),
			writable(RoleVault),
			writable(RoleMintInfo),
			readonly(RoleOracle),
			writableSigner(RolePayer),
			readonly(RoleTokenProgram),
			readonly(RoleSystemProgram),
			readonly(RoleRent),
		},
	},
	{
		Name:   "token_edit",
		Opcode: [8]byte{0x91, 0xcc, 0x0b, 0xd1, 0xae, 0x86, 0x4f, 0x3e},
		Args:   reflect.TypeOf(TokenEditArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RoleMintInfo),
		},
	},
	{
		Name:   "token_add_bank",
		Opcode: [8]byte{0xa3, 0x58, 0xea, 0x1f, 0x81, 0xde, 0x03, 0x24},
		Args:   reflect.TypeOf(TokenAddBankArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			readonly(RoleMint),
			readonly(RoleExistingBank),
			writable(RoleBank),
			writable(RoleVault),
			writable(RoleMintInfo),
			writableSigner(RolePayer),
			readonly(RoleTokenProgram),
			readonly(RoleSystemProgram),
			readonly(RoleRent),
		},
	},
	{
		Name:   "token_deregister",
		Opcode: [8]byte{0x52, 0x66, 0x26, 0x43, 0x87, 0xc7, 0x84, 0x2e},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RoleMintInfo),
			writable(RoleDustVault),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "token_update_index_and_rate",
		Opcode: [8]byte{0x83, 0x88, 0xc2, 0x27, 0x0b, 0x32, 0x0a, 0xc6},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			readonly(RoleMintInfo),
			readonly(RoleOracle),
			readonly(RoleInstructions),
		},
	},
	{
		Name:   "account_create",
		Opcode: [8]byte{0xc6, 0x5f, 0x27, 0xc5, 0x29, 0xd6, 0x9d, 0x12},
		Args:   reflect.TypeOf(AccountCreateArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
		},
	},
	{
		Name:   "account_expand",
		Opcode: [8]byte{0x58, 0xd4, 0x1f, 0x74, 0xfd, 0xc9, 0x51, 0x01},
		Args:   reflect.TypeOf(AccountExpandArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
		},
	},
	{
		Name:   "account_edit",
		Opcode: [8]byte{0xba, 0xd3, 0xcd, 0xb7, 0x73, 0x5d, 0x18, 0xa1},
		Args:   reflect.TypeOf(AccountEditArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
		},
	},
	{
		Name:   "account_close",
		Opcode: [8]byte{0x73, 0x05, 0xc0, 0x1c, 0x56, 0xdd, 0x89, 0x66},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "stub_oracle_create",
		Opcode: [8]byte{0xac, 0x3f, 0x65, 0x53, 0x8d, 0x4c, 0xc7, 0xd8},
		Args:   reflect.TypeOf(StubOracleCreateArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleOracle),
			signer(RoleAdmin),
			readonly(RoleMint),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
		},
	},
	{
		Name:   "stub_oracle_close",
		Opcode: [8]byte{0x5c, 0x89, 0x2d, 0x03, 0x2d, 0x3c, 0x75, 0xe0},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleOracle),
			signer(RoleAdmin),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "stub_oracle_set",
		Opcode: [8]byte{0x6d, 0xc6, 0x4f, 0x79, 0x41, 0xca, 0xa1, 0x8e},
		Args:   reflect.TypeOf(StubOracleSetArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RoleOracle),
		},
	},
	{
		Name:   "token_deposit",
		Opcode: [8]byte{0x75, 0xff, 0x9a, 0x47, 0xf5, 0x3a, 0x5f, 0x59},
		Args:   reflect.TypeOf(TokenDepositArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleBank),
			writable(RoleVault),
			readonly(RoleOracle),
			writable(RoleTokenAccount),
			signer(RoleTokenAuthority),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "token_deposit_into_existing",
		Opcode: [8]byte{0x0d, 0x25, 0xdc, 0x44, 0x17, 0x15, 0x2a, 0x89},
		Args:   reflect.TypeOf(TokenDepositIntoExistingArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			writable(RoleBank),
			writable(RoleVault),
			readonly(RoleOracle),
			writable(RoleTokenAccount),
			signer(RoleTokenAuthority),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "token_withdraw",
		Opcode: [8]byte{0x3f, 0xdf, 0x2a, 0x3b, 0x0f, 0x80, 0x66, 0x42},
		Args:   reflect.TypeOf(TokenWithdrawArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleBank),
			writable(RoleVault),
			readonly(RoleOracle),
			writable(RoleTokenAccount),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "flash_loan_begin",
		Opcode: [8]byte{0x51, 0x4e, 0xe0, 0x3c, 0xf4, 0x38, 0x5a, 0xef},
		Args:   reflect.TypeOf(FlashLoanBeginArgs{}),
		Accounts: []AccountRole{
			writable(RoleAccount),
			signer(RoleOwner),
			readonly(RoleTokenProgram),
			readonly(RoleInstructions),
		},
	},
	{
		Name:   "flash_loan_end",
		Opcode: [8]byte{0xb2, 0xaa, 0x02, 0x4e, 0xf0, 0x17, 0xbe, 0xb2},
		Args:   reflect.TypeOf(FlashLoanEndArgs{}),
		Accounts: []AccountRole{
			writable(RoleAccount),
			signer(RoleOwner),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "health_region_begin",
		Opcode: [8]byte{0x3d, 0x43, 0x35, 0xc6, 0x8b, 0x84, 0xd3, 0x2c},
		Accounts: []AccountRole{
			readonly(RoleInstructions),
			writable(RoleAccount),
		},
	},
	{
		Name:   "health_region_end",
		Opcode: [8]byte{0x1a, 0xb4, 0xea, 0x70, 0x3a, 0x41, 0x08, 0xf6},
		Accounts: []AccountRole{
			writable(RoleAccount),
		},
	},
	{
		Name:   "serum3_register_market",
		Opcode: [8]byte{0x28, 0x0e, 0x6d, 0x78, 0xde, 0x9c, 0xd1, 0x00},
		Args:   reflect.TypeOf(Serum3RegisterMarketArgs{}),
		Accounts: []AccountRole{
			writable(RoleGroup),
			signer(RoleAdmin),
			readonly(RoleSerumProgram),
			readonly(RoleSerumMarketExternal),
			writable(RoleSerumMarket),
			writable(RoleIndexReservation),
			readonly(RoleQuoteBank),
			readonly(RoleBaseBank),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
		},
	},
	{
		Name:   "serum3_deregister_market",
		Opcode: [8]byte{0x11, 0xa4, 0x2a, 0xde, 0x97, 0xa0, 0x18, 0xb5},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RoleSerumMarket),
			writable(RoleIndexReservation),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "serum3_create_open_orders",
		Opcode: [8]byte{0x04, 0xf4, 0x23, 0x28, 0x55, 0x53, 0xcb, 0xfa},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			readonly(RoleSerumMarketExternal),
			writable(RoleOpenOrders),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
			readonly(RoleRent),
		},
	},
	{
		Name:   "serum3_close_open_orders",
		Opcode: [8]byte{0xff, 0x89, 0x7a, 0xfd, 0xf1, 0x26, 0xee, 0x88},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			readonly(RoleSerumMarketExternal),
			writable(RoleOpenOrders),
			writable(RoleSolDestination),
		},
	},
	{
		Name:   "serum3_place_order",
		Opcode: [8]byte{0x61, 0x1d, 0x7b, 0xc7, 0xe4, 0x14, 0xb8, 0xfc},
		Args:   reflect.TypeOf(Serum3PlaceOrderArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleOpenOrders),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			writable(RoleSerumMarketExternal),
			writable(RoleMarketBids),
			writable(RoleMarketAsks),
			writable(RoleMarketEventQueue),
			writable(RoleMarketRequestQueue),
			writable(RoleMarketBaseVault),
			writable(RoleMarketQuoteVault),
			readonly(RoleMarketVaultSigner),
			writable(RolePayerBank),
			writable(RolePayerVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "serum3_cancel_order",
		Opcode: [8]byte{0x7e, 0x72, 0x6d, 0x16, 0xc6, 0x0c, 0x7c, 0x4b},
		Args:   reflect.TypeOf(Serum3CancelOrderArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleOpenOrders),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			writable(RoleSerumMarketExternal),
			writable(RoleMarketBids),
			writable(RoleMarketAsks),
			writable(RoleMarketEventQueue),
		},
	},
	{
		Name:   "serum3_cancel_all_orders",
		Opcode: [8]byte{0xf1, 0xfc, 0x0e, 0x05, 0xf5, 0x80, 0x02, 0xac},
		Args:   reflect.TypeOf(Serum3CancelAllOrdersArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			readonly(RoleAccount),
			signer(RoleOwner),
			writable(RoleOpenOrders),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			writable(RoleSerumMarketExternal),
			writable(RoleMarketBids),
			writable(RoleMarketAsks),
			writable(RoleMarketEventQueue),
		},
	},
	{
		Name:   "serum3_settle_funds",
		Opcode: [8]byte{0x55, 0x3c, 0x69, 0xe5, 0xe2, 0x33, 0x25, 0x6b},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RoleOpenOrders),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			writable(RoleSerumMarketExternal),
			writable(RoleMarketBaseVault),
			writable(RoleMarketQuoteVault),
			readonly(RoleMarketVaultSigner),
			writable(RoleQuoteBank),
			writable(RoleQuoteVault),
			writable(RoleBaseBank),
			writable(RoleBaseVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "serum3_liq_force_cancel_orders",
		Opcode: [8]byte{0x1f, 0xaa, 0x5f, 0x5d, 0x58, 0x36, 0x09, 0xe7},
		Args:   reflect.TypeOf(Serum3LiqForceCancelOrdersArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			writable(RoleOpenOrders),
			readonly(RoleSerumMarket),
			readonly(RoleSerumProgram),
			writable(RoleSerumMarketExternal),
			writable(RoleMarketBids),
			writable(RoleMarketAsks),
			writable(RoleMarketEventQueue),
			writable(RoleMarketBaseVault),
			writable(RoleMarketQuoteVault),
			readonly(RoleMarketVaultSigner),
			writable(RoleQuoteBank),
			writable(RoleQuoteVault),
			writable(RoleBaseBank),
			writable(RoleBaseVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "liq_token_with_token",
		Opcode: [8]byte{0x43, 0x7f, 0x98, 0x98, 0xd3, 0xd0, 0xfb, 0xe2},
		Args:   reflect.TypeOf(LiqTokenWithTokenArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
		},
	},
	{
		Name:   "liq_token_bankruptcy",
		Opcode: [8]byte{0x69, 0xab, 0xdf, 0x44, 0x6b, 0x3e, 0x0c, 0xf3},
		Args:   reflect.TypeOf(LiqTokenBankruptcyArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
			readonly(RoleLiabMintInfo),
			writable(RoleQuoteVault),
			writable(RoleInsuranceVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "token_liq_with_token",
		Opcode: [8]byte{0x06, 0x34, 0x53, 0x14, 0xd8, 0x7f, 0x40, 0x66},
		Args:   reflect.TypeOf(TokenLiqWithTokenArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
		},
	},
	{
		Name:   "token_liq_bankruptcy",
		Opcode: [8]byte{0x7a, 0x6e, 0xcb, 0x0f, 0x08, 0x75, 0xa4, 0x46},
		Args:   reflect.TypeOf(TokenLiqBankruptcyArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
			readonly(RoleLiabMintInfo),
			writable(RoleQuoteVault),
			writable(RoleInsuranceVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "perp_create_market",
		Opcode: [8]byte{0x5d, 0x2f, 0x2d, 0xc3, 0x3e, 0xfc, 0x20, 0x22},
		Args:   reflect.TypeOf(PerpCreateMarketArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			readonly(RoleOracle),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
			writable(RoleEventQueue),
			writableSigner(RolePayer),
			readonly(RoleSystemProgram),
		},
	},
	{
		Name:   "perp_edit_market",
		Opcode: [8]byte{0x7c, 0x72, 0xa0, 0xe7, 0x45, 0xdf, 0x4c, 0x51},
		Args:   reflect.TypeOf(PerpEditMarketArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RolePerpMarket),
		},
	},
	{
		Name:   "perp_close_market",
		Opcode: [8]byte{0xe2, 0xee, 0xbb, 0x11, 0xa0, 0x99, 0xfe, 0xa0},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
			writable(RoleEventQueue),
			writable(RoleSolDestination),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "perp_deactivate_position",
		Opcode: [8]byte{0x8c, 0x54, 0xf3, 0xf9, 0x1d, 0x94, 0x12, 0x1d},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			readonly(RolePerpMarket),
		},
	},
	{
		Name:   "perp_place_order",
		Opcode: [8]byte{0xbd, 0xc4, 0xe1, 0xc9, 0x72, 0xac, 0x19, 0xa6},
		Args:   reflect.TypeOf(PerpPlaceOrderArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
			writable(RoleEventQueue),
			readonly(RoleOracle),
		},
	},
	{
		Name:   "perp_cancel_order",
		Opcode: [8]byte{0xe9, 0x09, 0xbd, 0x44, 0xe0, 0xa3, 0xf5, 0xc1},
		Args:   reflect.TypeOf(PerpCancelOrderArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
		},
	},
	{
		Name:   "perp_cancel_order_by_client_order_id",
		Opcode: [8]byte{0x4a, 0xfa, 0x38, 0x4f, 0xce, 0xad, 0xa3, 0x66},
		Args:   reflect.TypeOf(PerpCancelOrderByClientOrderIDArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
		},
	},
	{
		Name:   "perp_cancel_all_orders",
		Opcode: [8]byte{0x60, 0x10, 0xe2, 0xb5, 0x6b, 0x91, 0xe0, 0xd5},
		Args:   reflect.TypeOf(PerpCancelAllOrdersArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
		},
	},
	{
		Name:   "perp_cancel_all_orders_by_side",
		Opcode: [8]byte{0x33, 0xf8, 0xcc, 0x7d, 0x65, 0xb6, 0x6b, 0x92},
		Args:   reflect.TypeOf(PerpCancelAllOrdersBySideArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			signer(RoleOwner),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
		},
	},
	{
		Name:   "perp_consume_events",
		Opcode: [8]byte{0x9e, 0x55, 0x1d, 0xd1, 0x38, 0xeb, 0x20, 0x25},
		Args:   reflect.TypeOf(PerpConsumeEventsArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RolePerpMarket),
			writable(RoleEventQueue),
		},
	},
	{
		Name:   "perp_update_funding",
		Opcode: [8]byte{0x1c, 0x12, 0xb8, 0x46, 0x07, 0xf5, 0x0e, 0x2e},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
			readonly(RoleOracle),
		},
	},
	{
		Name:   "perp_settle_pnl",
		Opcode: [8]byte{0xf5, 0x62, 0x55, 0xb3, 0xe6, 0xd7, 0x82, 0x39},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			readonly(RolePerpMarket),
			writable(RoleAccountA),
			writable(RoleAccountB),
			readonly(RoleOracle),
			writable(RoleQuoteBank),
		},
	},
	{
		Name:   "perp_settle_fees",
		Opcode: [8]byte{0xdf, 0xed, 0xe3, 0x48, 0x98, 0xb9, 0xea, 0x73},
		Args:   reflect.TypeOf(PerpSettleFeesArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RolePerpMarket),
			writable(RoleAccount),
			readonly(RoleOracle),
			writable(RoleQuoteBank),
		},
	},
	{
		Name:   "perp_liq_base_position",
		Opcode: [8]byte{0xa8, 0x4c, 0xc9, 0x75, 0x48, 0x35, 0x41, 0x6b},
		Args:   reflect.TypeOf(PerpLiqBasePositionArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RolePerpMarket),
			readonly(RoleOracle),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
		},
	},
	{
		Name:   "perp_liq_force_cancel_orders",
		Opcode: [8]byte{0x6d, 0xcb, 0xba, 0x10, 0xe9, 0x5b, 0x01, 0x8d},
		Args:   reflect.TypeOf(PerpLiqForceCancelOrdersArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RoleAccount),
			writable(RolePerpMarket),
			writable(RoleBids),
			writable(RoleAsks),
			readonly(RoleOracle),
		},
	},
	{
		Name:   "perp_liq_bankruptcy",
		Opcode: [8]byte{0x8b, 0xcc, 0xdd, 0x02, 0xe9, 0x05, 0xb5, 0x7c},
		Args:   reflect.TypeOf(PerpLiqBankruptcyArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			writable(RolePerpMarket),
			writable(RoleLiqor),
			signer(RoleLiqorOwner),
			writable(RoleLiqee),
			writable(RoleQuoteBank),
			writable(RoleQuoteVault),
			writable(RoleInsuranceVault),
			readonly(RoleTokenProgram),
		},
	},
	{
		Name:   "alt_set",
		Opcode: [8]byte{0xeb, 0x44, 0x91, 0x20, 0x3b, 0x69, 0x37, 0x19},
		Args:   reflect.TypeOf(ALTSetArgs{}),
		Accounts: []AccountRole{
			writable(RoleGroup),
			signer(RoleAdmin),
			writable(RoleAddressLookupTable),
		},
	},
	{
		Name:   "alt_extend",
		Opcode: [8]byte{0x7c, 0x33, 0x2f, 0x5a, 0x44, 0x42, 0x19, 0x62},
		Args:   reflect.TypeOf(ALTExtendArgs{}),
		Accounts: []AccountRole{
			readonly(RoleGroup),
			signer(RoleAdmin),
			writableSigner(RolePayer),
			writable(RoleAddressLookupTable),
		},
	},
	{
		Name:   "compute_account_data",
		Opcode: [8]byte{0x36, 0x46, 0xbe, 0x62, 0xf6, 0xf2, 0x63, 0x74},
		Accounts: []AccountRole{
			readonly(RoleGroup),
			readonly(RoleAccount),
		},
	},
	{
		Name:   "benchmark",
		Opcode: [8]byte{0x79, 0x76, 0x3b, 0xdc, 0x56, 0x8d, 0xa6, 0x7a},
	},
}

var instructionsByName = func() map[string]*InstructionDef {
	m := make(map[string]*InstructionDef, len(instructionDefs))
	for i := range instructionDefs {
		m[instructionDefs[i].Name] = &instructionDefs[i]
	}
	return m
}()

// LookupInstruction returns the definition registered under the snake_case
// operation name.
func LookupInstruction(name string) (InstructionDef, bool) {
	def, ok := instructionsByName[name]
	if !ok {
		return InstructionDef{}, false
	}
	return *def, true
}

// Instructions lists every definition ordered by name.
func Instructions() []InstructionDef {
	out := make([]InstructionDef, len(instructionDefs))
	copy(out, instructionDefs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewArgs allocates a zero argument value for the operation, or returns nil
// when it takes none.
func (d InstructionDef) NewArgs() any {
	if d.Args == nil {
		return nil
	}
	return reflect.New(d.Args).Interface()
}

// EncodeData returns the opcode followed by the encoded arguments. args may
// be the argument struct or a pointer to it.
func (d InstructionDef) EncodeData(args any) ([]byte, error) {
	data := append(make([]byte, 0, len(d.Opcode)+64), d.Opcode[:]...)
	if d.Args == nil {
		if args != nil {
			return nil, fmt.Errorf("%w: %s takes no arguments, got %T", ErrArgsType, d.Name, args)
		}
		return data, nil
	}
	if args == nil {
		return nil, fmt.Errorf("%w: %s requires %s", ErrArgsType, d.Name, d.Args)
	}
	t := reflect.TypeOf(args)
	if t != d.Args && !(t.Kind() == reflect.Pointer && t.Elem() == d.Args) {
		return nil, fmt.Errorf("%w: %s requires %s, got %s", ErrArgsType, d.Name, d.Args, t)
	}
	if t.Kind() == reflect.Pointer && reflect.ValueOf(args).IsNil() {
		return nil, fmt.Errorf("%w: %s requires %s, got nil %s", ErrArgsType, d.Name, d.Args, t)
	}
	body, err := codec.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", d.Name, err)
	}
	return append(data, body...), nil
}

// Metas resolves the account template against the supplied addresses.
func (d InstructionDef) Metas(accounts map[string]solana.PublicKey) (solana.AccountMetaSlice, error) {
	metas := make(solana.AccountMetaSlice, 0, len(d.Accounts))
	for _, role := range d.Accounts {
		pk, ok := accounts[role.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s needs %q", ErrMissingAccount, d.Name, role.Name)
		}
		metas = append(metas, solana.NewAccountMeta(pk, role.Writable, role.Signer))
	}
	return metas, nil
}

// BuildInstruction encodes a program instruction from the named template.
// Remaining accounts are appended after the template accounts unchanged.
func BuildInstruction(
	programID solana.PublicKey,
	name string,
	args any,
	accounts map[string]solana.PublicKey,
	remaining ...*solana.AccountMeta,
) (*solana.GenericInstruction, error) {
	def, ok := instructionsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, name)
	}
	data, err := def.EncodeData(args)
	if err != nil {
		return nil, err
	}
	metas, err := def.Metas(accounts)
	if err != nil {
		return nil, err
	}
	metas = append(metas, remaining...)
	return solana.NewInstruction(programID, metas, data), nil
}
