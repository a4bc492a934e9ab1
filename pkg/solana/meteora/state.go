package meteora

import (
	"crypto/ed25519"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana/binary"
)

// Anchor prefixes every account with an 8 byte discriminator.
const anchorDiscriminatorSize = 8

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidActivation  = errors.New("invalid activation type")
)

// FeeDenominator is the shared denominator of the host trading fee.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-amm/src/constants.rs#L37
const FeeDenominator = 100000

// CalculateFee computes a floor-division fee with a minimum fee of one
// token on any non-zero trade.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-amm/src/state.rs#L190
func CalculateFee(tokenAmount, feeNumerator, feeDenominator uint64) (uint64, error) {
	if feeNumerator == 0 || tokenAmount == 0 {
		return 0, nil
	}
	if feeDenominator == 0 {
		return 0, ErrArithmeticOverflow
	}

	fee := new(uint256.Int).Mul(uint256.NewInt(tokenAmount), uint256.NewInt(feeNumerator))
	fee.Div(fee, uint256.NewInt(feeDenominator))
	if fee.IsZero() {
		return 1, nil
	}
	if !fee.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return fee.Uint64(), nil
}

// PoolFees is the fee configuration of a pool.
type PoolFees struct {
	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64

	ProtocolTradeFeeNumerator   uint64
	ProtocolTradeFeeDenominator uint64
}

// TradingFee is the total fee charged on the input amount.
func (f *PoolFees) TradingFee(tradingTokens uint64) (uint64, error) {
	return CalculateFee(tradingTokens, f.TradeFeeNumerator, f.TradeFeeDenominator)
}

// ProtocolTradingFee is the protocol's cut, taken from the trading fee.
func (f *PoolFees) ProtocolTradingFee(tradingTokens uint64) (uint64, error) {
	return CalculateFee(tradingTokens, f.ProtocolTradeFeeNumerator, f.ProtocolTradeFeeDenominator)
}

type PoolType byte

const (
	PoolTypePermissioned PoolType = iota
	PoolTypePermissionless
)

type ActivationType byte

const (
	ActivationTypeSlot ActivationType = iota
	ActivationTypeTimestamp
)

type CurveType byte

const (
	CurveTypeConstantProduct CurveType = iota
	CurveTypeStable
)

// Bootstrapping gates trading until the pool's activation point.
type Bootstrapping struct {
	// Slot or timestamp, depending on ActivationType.
	ActivationPoint  uint64
	WhitelistedVault ed25519.PublicKey
	PoolCreator      ed25519.PublicKey
	ActivationType   uint8
}

type PartnerInfo struct {
	FeeNumerator     uint64
	PartnerAuthority ed25519.PublicKey
	PendingFeeA      uint64
	PendingFeeB      uint64
}

// StableParams is the payload of the stable curve variant. Carried only
// so stable pools round-trip, the quote path rejects them.
type StableParams struct {
	Amp uint64

	TokenAMultiplier uint64
	TokenBMultiplier uint64
	PrecisionFactor  uint8

	BaseVirtualPrice uint64
	BaseCacheUpdated uint64
	DepegType        uint8

	LastAmpUpdatedTimestamp uint64
}

const (
	poolPadding0Size = 24
	poolPaddingSize  = 6 + 21*8 + 21*8

	poolBaseSize    = 7*32 + 1 + 1 + 2*32 + 8 + poolPadding0Size + 4*8 + 1 + 32 + 8 + 73 + 56 + poolPaddingSize + 1
	stableCurveSize = 8 + 17 + 17 + 8

	// PoolSize is the minimum borsh-packed size of a pool, sans the
	// anchor discriminator.
	PoolSize = poolBaseSize
)

// Pool is the borsh-packed state of a dynamic AMM pool.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-amm/src/state.rs#L61
type Pool struct {
	LpMint     ed25519.PublicKey
	TokenAMint ed25519.PublicKey
	TokenBMint ed25519.PublicKey

	AVault   ed25519.PublicKey
	BVault   ed25519.PublicKey
	AVaultLp ed25519.PublicKey
	BVaultLp ed25519.PublicKey

	AVaultLpBump uint8
	Enabled      bool

	ProtocolTokenAFee ed25519.PublicKey
	ProtocolTokenBFee ed25519.PublicKey

	FeeLastUpdatedAt uint64

	Fees PoolFees

	PoolType PoolType

	// Non-zero when liquidity is routed through an SPL stake pool. The
	// swap instruction never receives the stake account, so such pools
	// cannot be traded against.
	Stake ed25519.PublicKey

	TotalLockedLp uint64

	Bootstrapping Bootstrapping
	PartnerInfo   PartnerInfo

	CurveType CurveType
	Stable    *StableParams
}

func (p *Pool) Marshal() []byte {
	size := anchorDiscriminatorSize + poolBaseSize
	if p.CurveType == CurveTypeStable {
		size += stableCurveSize
	}
	b := make([]byte, size)

	offset := anchorDiscriminatorSize
	binary.PutKey32(b[offset:], p.LpMint, &offset)
	binary.PutKey32(b[offset:], p.TokenAMint, &offset)
	binary.PutKey32(b[offset:], p.TokenBMint, &offset)
	binary.PutKey32(b[offset:], p.AVault, &offset)
	binary.PutKey32(b[offset:], p.BVault, &offset)
	binary.PutKey32(b[offset:], p.AVaultLp, &offset)
	binary.PutKey32(b[offset:], p.BVaultLp, &offset)
	binary.PutUint8(b[offset:], p.AVaultLpBump, &offset)
	if p.Enabled {
		b[offset] = 1
	}
	offset++
	binary.PutKey32(b[offset:], p.ProtocolTokenAFee, &offset)
	binary.PutKey32(b[offset:], p.ProtocolTokenBFee, &offset)
	binary.PutUint64(b[offset:], p.FeeLastUpdatedAt, &offset)
	offset += poolPadding0Size
	binary.PutUint64(b[offset:], p.Fees.TradeFeeNumerator, &offset)
	binary.PutUint64(b[offset:], p.Fees.TradeFeeDenominator, &offset)
	binary.PutUint64(b[offset:], p.Fees.ProtocolTradeFeeNumerator, &offset)
	binary.PutUint64(b[offset:], p.Fees.ProtocolTradeFeeDenominator, &offset)
	binary.PutUint8(b[offset:], uint8(p.PoolType), &offset)
	binary.PutKey32(b[offset:], p.Stake, &offset)
	binary.PutUint64(b[offset:], p.TotalLockedLp, &offset)
	binary.PutUint64(b[offset:], p.Bootstrapping.ActivationPoint, &offset)
	binary.PutKey32(b[offset:], p.Bootstrapping.WhitelistedVault, &offset)
	binary.PutKey32(b[offset:], p.Bootstrapping.PoolCreator, &offset)
	binary.PutUint8(b[offset:], p.Bootstrapping.ActivationType, &offset)
	binary.PutUint64(b[offset:], p.PartnerInfo.FeeNumerator, &offset)
	binary.PutKey32(b[offset:], p.PartnerInfo.PartnerAuthority, &offset)
	binary.PutUint64(b[offset:], p.PartnerInfo.PendingFeeA, &offset)
	binary.PutUint64(b[offset:], p.PartnerInfo.PendingFeeB, &offset)
	offset += poolPaddingSize
	binary.PutUint8(b[offset:], uint8(p.CurveType), &offset)

	if p.CurveType == CurveTypeStable && p.Stable != nil {
		binary.PutUint64(b[offset:], p.Stable.Amp, &offset)
		binary.PutUint64(b[offset:], p.Stable.TokenAMultiplier, &offset)
		binary.PutUint64(b[offset:], p.Stable.TokenBMultiplier, &offset)
		binary.PutUint8(b[offset:], p.Stable.PrecisionFactor, &offset)
		binary.PutUint64(b[offset:], p.Stable.BaseVirtualPrice, &offset)
		binary.PutUint64(b[offset:], p.Stable.BaseCacheUpdated, &offset)
		binary.PutUint8(b[offset:], p.Stable.DepegType, &offset)
		binary.PutUint64(b[offset:], p.Stable.LastAmpUpdatedTimestamp, &offset)
	}

	return b
}

func (p *Pool) Unmarshal(b []byte) error {
	if len(b) < anchorDiscriminatorSize+poolBaseSize {
		return errors.Errorf("invalid pool account size: %d", len(b))
	}

	offset := anchorDiscriminatorSize
	binary.GetKey32(b[offset:], &p.LpMint, &offset)
	binary.GetKey32(b[offset:], &p.TokenAMint, &offset)
	binary.GetKey32(b[offset:], &p.TokenBMint, &offset)
	binary.GetKey32(b[offset:], &p.AVault, &offset)
	binary.GetKey32(b[offset:], &p.BVault, &offset)
	binary.GetKey32(b[offset:], &p.AVaultLp, &offset)
	binary.GetKey32(b[offset:], &p.BVaultLp, &offset)
	binary.GetUint8(b[offset:], &p.AVaultLpBump, &offset)
	p.Enabled = b[offset] == 1
	offset++
	binary.GetKey32(b[offset:], &p.ProtocolTokenAFee, &offset)
	binary.GetKey32(b[offset:], &p.ProtocolTokenBFee, &offset)
	binary.GetUint64(b[offset:], &p.FeeLastUpdatedAt, &offset)
	offset += poolPadding0Size
	binary.GetUint64(b[offset:], &p.Fees.TradeFeeNumerator, &offset)
	binary.GetUint64(b[offset:], &p.Fees.TradeFeeDenominator, &offset)
	binary.GetUint64(b[offset:], &p.Fees.ProtocolTradeFeeNumerator, &offset)
	binary.GetUint64(b[offset:], &p.Fees.ProtocolTradeFeeDenominator, &offset)
	p.PoolType = PoolType(b[offset])
	offset++
	binary.GetKey32(b[offset:], &p.Stake, &offset)
	binary.GetUint64(b[offset:], &p.TotalLockedLp, &offset)
	binary.GetUint64(b[offset:], &p.Bootstrapping.ActivationPoint, &offset)
	binary.GetKey32(b[offset:], &p.Bootstrapping.WhitelistedVault, &offset)
	binary.GetKey32(b[offset:], &p.Bootstrapping.PoolCreator, &offset)
	binary.GetUint8(b[offset:], &p.Bootstrapping.ActivationType, &offset)
	binary.GetUint64(b[offset:], &p.PartnerInfo.FeeNumerator, &offset)
	binary.GetKey32(b[offset:], &p.PartnerInfo.PartnerAuthority, &offset)
	binary.GetUint64(b[offset:], &p.PartnerInfo.PendingFeeA, &offset)
	binary.GetUint64(b[offset:], &p.PartnerInfo.PendingFeeB, &offset)
	offset += poolPaddingSize
	p.CurveType = CurveType(b[offset])
	offset++
	p.Stable = nil

	if p.CurveType == CurveTypeStable {
		if len(b) < offset+stableCurveSize {
			return errors.Errorf("invalid stable pool account size: %d", len(b))
		}

		stable := &StableParams{}
		binary.GetUint64(b[offset:], &stable.Amp, &offset)
		binary.GetUint64(b[offset:], &stable.TokenAMultiplier, &offset)
		binary.GetUint64(b[offset:], &stable.TokenBMultiplier, &offset)
		binary.GetUint8(b[offset:], &stable.PrecisionFactor, &offset)
		binary.GetUint64(b[offset:], &stable.BaseVirtualPrice, &offset)
		binary.GetUint64(b[offset:], &stable.BaseCacheUpdated, &offset)
		binary.GetUint8(b[offset:], &stable.DepegType, &offset)
		binary.GetUint64(b[offset:], &stable.LastAmpUpdatedTimestamp, &offset)
		p.Stable = stable
	}

	return nil
}

// lockedProfitDegradationDenominator scales the per second degradation
// rate, 1e12.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-vault/src/state.rs#L11
const lockedProfitDegradationDenominator = 1_000_000_000_000

// LockedProfitTracker linearly releases rebalance profit over time.
type LockedProfitTracker struct {
	LastUpdatedLockedProfit uint64
	LastReport              uint64
	LockedProfitDegradation uint64
}

// CalculateLockedProfit returns the portion of the last reported profit
// still locked at the given time.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-vault/src/state.rs#L95
func (t *LockedProfitTracker) CalculateLockedProfit(currentTime uint64) (uint64, error) {
	if currentTime < t.LastReport {
		return 0, ErrArithmeticOverflow
	}
	duration := currentTime - t.LastReport

	denominator := uint256.NewInt(lockedProfitDegradationDenominator)
	lockedFundRatio := new(uint256.Int).Mul(uint256.NewInt(duration), uint256.NewInt(t.LockedProfitDegradation))
	if lockedFundRatio.Gt(denominator) {
		return 0, nil
	}

	lockedProfit := new(uint256.Int).Sub(denominator, lockedFundRatio)
	lockedProfit.Mul(lockedProfit, uint256.NewInt(t.LastUpdatedLockedProfit))
	lockedProfit.Div(lockedProfit, denominator)
	if !lockedProfit.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return lockedProfit.Uint64(), nil
}

const maxStrategy = 30

// VaultSize is the borsh-packed size of a vault, sans the anchor
// discriminator.
const VaultSize = 1 + 2 + 8 + 4*32 + maxStrategy*32 + 3*32 + 3*8

type VaultBumps struct {
	VaultBump      uint8
	TokenVaultBump uint8
}

// Vault is the borsh-packed state of a dynamic vault.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-vault/src/state.rs#L16
type Vault struct {
	Enabled uint8
	Bumps   VaultBumps

	// Includes remaining tokens in TokenVault plus liquidity deployed
	// to strategies.
	TotalAmount uint64

	TokenVault ed25519.PublicKey
	FeeVault   ed25519.PublicKey
	TokenMint  ed25519.PublicKey
	LpMint     ed25519.PublicKey

	Base     ed25519.PublicKey
	Admin    ed25519.PublicKey
	Operator ed25519.PublicKey

	LockedProfitTracker LockedProfitTracker
}

func (v *Vault) Marshal() []byte {
	b := make([]byte, anchorDiscriminatorSize+VaultSize)

	offset := anchorDiscriminatorSize
	binary.PutUint8(b[offset:], v.Enabled, &offset)
	binary.PutUint8(b[offset:], v.Bumps.VaultBump, &offset)
	binary.PutUint8(b[offset:], v.Bumps.TokenVaultBump, &offset)
	binary.PutUint64(b[offset:], v.TotalAmount, &offset)
	binary.PutKey32(b[offset:], v.TokenVault, &offset)
	binary.PutKey32(b[offset:], v.FeeVault, &offset)
	binary.PutKey32(b[offset:], v.TokenMint, &offset)
	binary.PutKey32(b[offset:], v.LpMint, &offset)
	offset += maxStrategy * 32
	binary.PutKey32(b[offset:], v.Base, &offset)
	binary.PutKey32(b[offset:], v.Admin, &offset)
	binary.PutKey32(b[offset:], v.Operator, &offset)
	binary.PutUint64(b[offset:], v.LockedProfitTracker.LastUpdatedLockedProfit, &offset)
	binary.PutUint64(b[offset:], v.LockedProfitTracker.LastReport, &offset)
	binary.PutUint64(b[offset:], v.LockedProfitTracker.LockedProfitDegradation, &offset)

	return b
}

func (v *Vault) Unmarshal(b []byte) error {
	if len(b) < anchorDiscriminatorSize+VaultSize {
		return errors.Errorf("invalid vault account size: %d", len(b))
	}

	offset := anchorDiscriminatorSize
	binary.GetUint8(b[offset:], &v.Enabled, &offset)
	binary.GetUint8(b[offset:], &v.Bumps.VaultBump, &offset)
	binary.GetUint8(b[offset:], &v.Bumps.TokenVaultBump, &offset)
	binary.GetUint64(b[offset:], &v.TotalAmount, &offset)
	binary.GetKey32(b[offset:], &v.TokenVault, &offset)
	binary.GetKey32(b[offset:], &v.FeeVault, &offset)
	binary.GetKey32(b[offset:], &v.TokenMint, &offset)
	binary.GetKey32(b[offset:], &v.LpMint, &offset)
	offset += maxStrategy * 32
	binary.GetKey32(b[offset:], &v.Base, &offset)
	binary.GetKey32(b[offset:], &v.Admin, &offset)
	binary.GetKey32(b[offset:], &v.Operator, &offset)
	binary.GetUint64(b[offset:], &v.LockedProfitTracker.LastUpdatedLockedProfit, &offset)
	binary.GetUint64(b[offset:], &v.LockedProfitTracker.LastReport, &offset)
	binary.GetUint64(b[offset:], &v.LockedProfitTracker.LockedProfitDegradation, &offset)

	return nil
}

// GetUnlockedAmount is the vault liquidity minus the still-locked profit.
func (v *Vault) GetUnlockedAmount(currentTime uint64) (uint64, error) {
	lockedProfit, err := v.LockedProfitTracker.CalculateLockedProfit(currentTime)
	if err != nil {
		return 0, err
	}
	if v.TotalAmount < lockedProfit {
		return 0, ErrArithmeticOverflow
	}
	return v.TotalAmount - lockedProfit, nil
}

// GetAmountByShare converts an LP share to the underlying token amount.
func (v *Vault) GetAmountByShare(currentTime, share, totalSupply uint64) (uint64, error) {
	totalAmount, err := v.GetUnlockedAmount(currentTime)
	if err != nil {
		return 0, err
	}
	if totalSupply == 0 {
		return 0, ErrArithmeticOverflow
	}

	amount := new(uint256.Int).Mul(uint256.NewInt(share), uint256.NewInt(totalAmount))
	amount.Div(amount, uint256.NewInt(totalSupply))
	if !amount.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return amount.Uint64(), nil
}

// GetUnmintAmount converts a token amount to the LP share that would be
// burned for it.
func (v *Vault) GetUnmintAmount(currentTime, outToken, totalSupply uint64) (uint64, error) {
	totalAmount, err := v.GetUnlockedAmount(currentTime)
	if err != nil {
		return 0, err
	}
	if totalAmount == 0 {
		return 0, ErrArithmeticOverflow
	}

	share := new(uint256.Int).Mul(uint256.NewInt(outToken), uint256.NewInt(totalSupply))
	share.Div(share, uint256.NewInt(totalAmount))
	if !share.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return share.Uint64(), nil
}
