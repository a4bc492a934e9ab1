package main

import (
	"bytes"
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/LetMut1/Dexswap/pkg/rpc"
	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/meteora"
	"github.com/LetMut1/Dexswap/pkg/solana/raydium"
	"github.com/LetMut1/Dexswap/pkg/solana/serum"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

// Config is loaded from the environment. Flags select the pool and the
// trade to simulate.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	Commitment  string `mapstructure:"commitment"`
}

func init() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("rpc_endpoint", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("commitment", "confirmed")

	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("rpc_endpoint", "RPC_ENDPOINT")
	_ = viper.BindEnv("commitment", "COMMITMENT")
}

func main() {
	var (
		dex     = flag.String("dex", "", "venue the pool belongs to (meteora|raydium)")
		pool    = flag.String("pool", "", "pool account address")
		inMint  = flag.String("in", "", "input token mint")
		outMint = flag.String("out", "", "output token mint (raydium only)")
		amount  = flag.Uint64("amount", 0, "input amount in base units")
	)
	flag.Parse()

	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.StandardLogger().WithField("type", "cmd/quote")

	commitment, err := parseCommitment(conf.Commitment)
	if err != nil {
		log.WithError(err).Fatal("invalid commitment")
	}
	if *amount == 0 {
		log.Fatal("amount must be positive")
	}
	poolKey, err := decodeKey(*pool)
	if err != nil {
		log.WithError(err).Fatal("invalid pool address")
	}

	client := rpc.New(conf.RPCEndpoint)

	var feeAmount, amountOut uint64
	switch *dex {
	case "meteora":
		mint, err := decodeKey(*inMint)
		if err != nil {
			log.WithError(err).Fatal("invalid input mint")
		}
		feeAmount, amountOut, err = meteoraQuote(client, commitment, poolKey, mint, *amount)
		if err != nil {
			log.WithError(err).Fatal("quote failed")
		}
	case "raydium":
		source, err := decodeKey(*inMint)
		if err != nil {
			log.WithError(err).Fatal("invalid input mint")
		}
		destination, err := decodeKey(*outMint)
		if err != nil {
			log.WithError(err).Fatal("invalid output mint")
		}
		feeAmount, amountOut, err = raydiumQuote(client, commitment, poolKey, source, destination, *amount)
		if err != nil {
			log.WithError(err).Fatal("quote failed")
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown -dex, expected meteora or raydium")
		flag.Usage()
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"pool":       *pool,
		"amount_in":  *amount,
		"fee_amount": feeAmount,
		"amount_out": amountOut,
	}).Debug("quote computed")

	fmt.Printf("amount_out: %d\nfee_amount: %d\n", amountOut, feeAmount)
}

// meteoraQuote fetches the dynamic AMM pool, its two vaults and their
// token/lp accounts, then runs the swap simulation locally.
func meteoraQuote(client rpc.Client, commitment rpc.Commitment, poolKey, inMint ed25519.PublicKey, amountIn uint64) (feeAmount, amountOut uint64, err error) {
	poolInfo, err := client.GetAccountInfo(poolKey, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch pool account")
	}
	if !bytes.Equal(poolInfo.Owner, meteora.ProgramKey) {
		return 0, 0, errors.New("pool account not owned by the dynamic amm program")
	}

	var pool meteora.Pool
	if err := pool.Unmarshal(poolInfo.Data); err != nil {
		return 0, 0, err
	}

	vaultInfos, err := client.GetMultipleAccounts([]ed25519.PublicKey{pool.AVault, pool.BVault}, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch vault accounts")
	}
	if err := requireAll(vaultInfos); err != nil {
		return 0, 0, err
	}

	var vaultA, vaultB meteora.Vault
	if err := vaultA.Unmarshal(vaultInfos[0].Data); err != nil {
		return 0, 0, err
	}
	if err := vaultB.Unmarshal(vaultInfos[1].Data); err != nil {
		return 0, 0, err
	}

	infos, err := client.GetMultipleAccounts([]ed25519.PublicKey{
		vaultA.TokenVault,
		vaultB.TokenVault,
		vaultA.LpMint,
		vaultB.LpMint,
		pool.AVaultLp,
		pool.BVaultLp,
	}, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch vault token accounts")
	}
	if err := requireAll(infos); err != nil {
		return 0, 0, err
	}

	var aToken, bToken, aLp, bLp token.Account
	var aLpMint, bLpMint token.Mint
	if !aToken.Unmarshal(infos[0].Data) ||
		!bToken.Unmarshal(infos[1].Data) ||
		!aLpMint.Unmarshal(infos[2].Data) ||
		!bLpMint.Unmarshal(infos[3].Data) ||
		!aLp.Unmarshal(infos[4].Data) ||
		!bLp.Unmarshal(infos[5].Data) {
		return 0, 0, errors.New("malformed vault token account")
	}

	clock, err := fetchClock(client, commitment)
	if err != nil {
		return 0, 0, err
	}

	quote, err := meteora.GetQuote(&meteora.QuoteParams{
		Pool: &pool,

		VaultA: &vaultA,
		VaultB: &vaultB,

		AVaultLpAmount: aLp.Amount,
		BVaultLpAmount: bLp.Amount,

		AVaultLpSupply: aLpMint.Supply,
		BVaultLpSupply: bLpMint.Supply,

		AVaultTokenAmount: aToken.Amount,
		BVaultTokenAmount: bToken.Amount,

		Clock: clock,

		InTokenMint: inMint,
		AmountIn:    amountIn,
	})
	if err != nil {
		return 0, 0, err
	}
	if quote == nil {
		return 0, 0, errors.New("pool cannot serve the trade right now")
	}
	return quote.FeeAmount, quote.AmountOut, nil
}

// raydiumQuote fetches the hybrid AMM state and its market accounts,
// then runs the swap simulation locally, replaying pending order-book
// fills when the pool is allowed to trade on the book.
func raydiumQuote(client rpc.Client, commitment rpc.Commitment, poolKey, sourceMint, destinationMint ed25519.PublicKey, amountIn uint64) (feeAmount, amountOut uint64, err error) {
	ammInfo, err := client.GetAccountInfo(poolKey, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch amm account")
	}
	amm, err := raydium.GetAmmInfo(ammInfo, raydium.ProgramKey)
	if err != nil {
		return 0, 0, err
	}

	authority, err := raydium.AuthorityAddress(raydium.ProgramKey, amm.Nonce)
	if err != nil {
		return 0, 0, err
	}

	infos, err := client.GetMultipleAccounts([]ed25519.PublicKey{
		amm.CoinVault,
		amm.PcVault,
		amm.Market,
		amm.OpenOrders,
	}, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch amm accounts")
	}
	if err := requireAll(infos); err != nil {
		return 0, 0, err
	}

	var coinVault, pcVault token.Account
	if !coinVault.Unmarshal(infos[0].Data) || !pcVault.Unmarshal(infos[1].Data) {
		return 0, 0, errors.New("malformed amm vault account")
	}

	market, err := serum.GetMarketState(infos[2], amm.MarketProgram)
	if err != nil {
		return 0, 0, err
	}
	eventQueueInfo, err := client.GetAccountInfo(market.EventQueue, commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to fetch event queue account")
	}

	clock, err := fetchClock(client, commitment)
	if err != nil {
		return 0, 0, err
	}

	quote, err := raydium.GetQuote(&raydium.QuoteParams{
		Amm: amm,

		CoinVaultAmount: coinVault.Amount,
		PcVaultAmount:   pcVault.Amount,
		CoinVaultMint:   coinVault.Mint,
		PcVaultMint:     pcVault.Mint,

		Market:     infos[2],
		OpenOrders: infos[3],
		EventQueue: eventQueueInfo,

		Authority: authority,

		Clock: clock,

		SourceMint:      sourceMint,
		DestinationMint: destinationMint,
		AmountIn:        amountIn,
	})
	if err != nil {
		return 0, 0, err
	}
	if quote == nil {
		return 0, 0, errors.New("pool cannot serve the trade right now")
	}
	return quote.FeeAmount, quote.AmountOut, nil
}

func fetchClock(client rpc.Client, commitment rpc.Commitment) (system.Clock, error) {
	info, err := client.GetAccountInfo(system.ClockSysVar, commitment)
	if err != nil {
		return system.Clock{}, errors.Wrap(err, "failed to fetch clock sysvar")
	}
	return system.GetClockFromAccount(info)
}

func requireAll(infos []*solana.AccountInfo) error {
	for i, info := range infos {
		if info == nil {
			return errors.Errorf("account %d does not exist", i)
		}
	}
	return nil
}

func parseCommitment(value string) (rpc.Commitment, error) {
	switch value {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	}
	return rpc.Commitment{}, errors.Errorf("unknown commitment: %s", value)
}

func decodeKey(value string) (ed25519.PublicKey, error) {
	key, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key size: %d", len(key))
	}
	return key, nil
}
