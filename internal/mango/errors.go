package mango

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrOwnerMismatch      = errors.New("account owner mismatch")
	ErrUnknownAccountKind = errors.New("unknown account kind")
	ErrVariantMismatch    = errors.New("slot variant mismatch")
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrArgsType           = errors.New("instruction args type mismatch")
	ErrMissingAccount     = errors.New("missing instruction account")
)

// ProgramError is a custom error code returned by the on-chain program.
type ProgramError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

func (e ProgramError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s (%d)", e.Name, e.Code)
	}
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

var programErrors = map[uint32]ProgramError{
	6000: {6000, "SomeError", ""},
	6001: {6001, "NotImplementedError", ""},
	6002: {6002, "MathError", "checked math error"},
	6003: {6003, "UnexpectedOracle", ""},
	6004: {6004, "UnknownOracleType", "oracle type cannot be determined"},
	6005: {6005, "InvalidFlashLoanTargetCpiProgram", ""},
	6006: {6006, "HealthMustBePositive", "health must be positive"},
	6007: {6007, "HealthMustBePositiveOrIncrease", "health must be positive or increase"},
	6008: {6008, "HealthMustBeNegative", "health must be negative"},
	6009: {6009, "IsBankrupt", "the account is bankrupt"},
	6010: {6010, "IsNotBankrupt", "the account is not bankrupt"},
	6011: {6011, "NoFreeTokenPositionIndex", "no free token position index"},
	6012: {6012, "NoFreeSerum3OpenOrdersIndex", "no free serum3 open orders index"},
	6013: {6013, "NoFreePerpPositionIndex", "no free perp position index"},
	6014: {6014, "Serum3OpenOrdersExistAlready", "serum3 open orders exist already"},
	6015: {6015, "InsufficentBankVaultFunds", "bank vault has insufficent funds"},
	6016: {6016, "BeingLiquidated", "account is currently being liquidated"},
	6017: {6017, "InvalidBank", "invalid bank"},
	6018: {6018, "ProfitabilityMismatch", "account profitability is mismatched"},
	6019: {6019, "CannotSettleWithSelf", "cannot settle with self"},
	6020: {6020, "PerpPositionDoesNotExist", "perp position does not exist"},
	6021: {6021, "MaxSettleAmountMustBeGreaterThanZero", "max settle amount must be greater than zero"},
	6022: {6022, "HasOpenPerpOrders", "the perp position has open orders or unprocessed fill events"},
}

// LookupError maps a custom program error code to its entry.
func LookupError(code uint32) (ProgramError, bool) {
	e, ok := programErrors[code]
	return e, ok
}

// ProgramErrors returns the whole table ordered by code.
func ProgramErrors() []ProgramError {
	out := make([]ProgramError, 0, len(programErrors))
	for _, e := range programErrors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

var customErrorPattern = regexp.MustCompile(`custom program error: (0x[0-9a-fA-F]+|\d+)`)

// ParseCustomError extracts the code from a "custom program error: 0x1770"
// fragment in a log line or transaction error string.
func ParseCustomError(line string) (uint32, bool) {
	m := customErrorPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 0, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
