package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"liquidlock/config"
	"liquidlock/crypto"
	"liquidlock/native/booster"
	"liquidlock/native/gauge"
	"liquidlock/native/locker"
	"liquidlock/native/poolutils"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
	"liquidlock/native/vault"
	"liquidlock/observability/logging"
	"liquidlock/state"
)

var wei = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), wei)
}

func moduleAddress(name string) crypto.Address {
	hash := ethcrypto.Keccak256Hash([]byte("module/"), []byte(name))
	return crypto.NewAddress(crypto.ModulePrefix, hash.Bytes()[12:])
}

func accountAddress(name string) crypto.Address {
	hash := ethcrypto.Keccak256Hash([]byte("account/"), []byte(name))
	return crypto.NewAddress(crypto.AccountPrefix, hash.Bytes()[12:])
}

func main() {
	configFile := flag.String("config", "./boostsim.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LLK_ENV"))
	logger := logging.Setup("boostsim", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	owner := accountAddress("governance")
	user := accountAddress("alice")
	proxyAddr := moduleAddress("voter-proxy")
	depositorAddr := moduleAddress("depositor")
	boosterAddr := moduleAddress("booster")
	burnerAddr := moduleAddress("burner")

	platformRecipient, err := cfg.PlatformRecipientAddress()
	if err != nil || platformRecipient.IsZero() {
		platformRecipient = accountAddress("platform")
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil || treasury.IsZero() {
		treasury = accountAddress("treasury")
	}
	feeQueue, err := cfg.FeeQueueAddress()
	if err != nil || feeQueue.IsZero() {
		feeQueue = moduleAddress("fee-queue")
	}

	ledger := state.NewLedger()
	escrow := state.NewEscrow()
	escrow.Approve(proxyAddr)
	feeDist := state.NewFeeDistributor(ledger, cfg.FeeToken)

	// A controllable clock so the streamed rewards are observable within one
	// run instead of waiting out the real duration.
	clock := time.Now().Unix()
	now := func() int64 { return clock }

	proxy := locker.NewProxy(proxyAddr, owner)
	proxy.SetEscrow(escrow)
	proxy.SetWalletChecker(escrow)
	proxy.SetDepositor(depositorAddr)

	depositor := locker.NewDepositor(depositorAddr, owner)
	depositor.SetState(ledger)
	depositor.SetProxy(proxy)
	depositor.SetTokens(cfg.GovToken, cfg.LiquidToken)
	depositor.SetPlatformHolding(cfg.PlatformFee.RateBps, platformRecipient)
	depositor.SetNowFunc(now)

	burner := locker.NewBurner(burnerAddr)
	burner.SetState(ledger)
	burner.SetToken(cfg.LiquidToken)

	feeReg := registry.NewFeeRegistry(owner)
	poolReg := registry.NewEngine()
	poolReg.SetState(ledger)

	rewardsEng := rewards.NewEngine()
	rewardsEng.SetState(ledger)
	rewardsEng.SetNowFunc(now)

	gaugeSim := state.NewGaugeSim(ledger, "LP")
	gaugeSim.SetWorkingFactor(25_000)
	gaugeTarget := moduleAddress("lp-gauge")

	boost := booster.NewEngine(boosterAddr, owner)
	boost.SetState(ledger)
	boost.SetRegistry(poolReg)
	boost.SetFeeRegistry(feeReg)
	boost.SetProxy(proxy)
	boost.SetRewards(rewardsEng)
	boost.SetFeeSource(feeDist)
	boost.SetFeeToken(cfg.FeeToken)
	boost.SetFeeQueue(feeQueue)
	boost.SetTreasury(treasury)
	boost.SetPlatformRecipient(platformRecipient)
	boost.SetEmissionResolver(func(target crypto.Address) booster.EmissionSource {
		if target.Equal(gaugeTarget) {
			return gaugeSim
		}
		return nil
	})

	if err := proxy.SetOperator(owner, boost); err != nil {
		logger.Error("failed to install operator", "err", err)
		os.Exit(1)
	}
	if err := boost.ClaimOperator(owner); err != nil {
		logger.Error("failed to claim operator", "err", err)
		os.Exit(1)
	}

	// Bring-up: seed the proxy with governance tokens and open the escrow.
	ledger.Mint(proxyAddr, cfg.GovToken, tokens(1_000))
	if err := depositor.InitialLock(owner); err != nil {
		logger.Error("initial lock failed", "err", err)
		os.Exit(1)
	}
	locked := proxy.LockedBalance()
	logger.Info("escrow position opened", "amount", locked.Amount.String(), "unlock", locked.UnlockTime)

	// User deposits: first staged, then folded into the escrow.
	ledger.Mint(user, cfg.GovToken, tokens(200))
	if err := depositor.Deposit(user, tokens(100), false); err != nil {
		logger.Error("staged deposit failed", "err", err)
		os.Exit(1)
	}
	if err := depositor.Deposit(user, tokens(100), true); err != nil {
		logger.Error("locking deposit failed", "err", err)
		os.Exit(1)
	}
	logger.Info("deposits settled",
		"userLiquid", ledger.BalanceOf(user, cfg.LiquidToken).String(),
		"platformLiquid", ledger.BalanceOf(platformRecipient, cfg.LiquidToken).String(),
		"escrowed", proxy.LockedBalance().Amount.String(),
	)

	// Pool lifecycle: register the gauge, create the user's vault, stake.
	poolID, err := boost.AddPool(owner, registry.VaultERC20, gaugeTarget, "LP")
	if err != nil {
		logger.Error("add pool failed", "err", err)
		os.Exit(1)
	}
	if _, err := boost.CreateVault(user, poolID); err != nil {
		logger.Error("create vault failed", "err", err)
		os.Exit(1)
	}
	record, ok, err := poolReg.VaultFor(poolID, user)
	if err != nil || !ok {
		logger.Error("vault record missing", "err", err)
		os.Exit(1)
	}
	userVault := vault.NewStakingProxy(*record, ledger, poolReg, rewardsEng)
	userVault.SetGauge(gaugeSim)

	ledger.Mint(user, "LP", tokens(50))
	if err := userVault.Deposit(user, tokens(50), false); err != nil {
		logger.Error("vault deposit failed", "err", err)
		os.Exit(1)
	}
	staked, _ := userVault.StakedBalance()
	logger.Info("vault staked", "pool", poolID, "amount", staked.String())

	// Revenue cycle: escrow fees and gauge emissions flow through the booster.
	feeDist.Accrue(proxyAddr, tokens(10))
	claimed, err := boost.ClaimFees()
	if err != nil {
		logger.Error("fee claim failed", "err", err)
		os.Exit(1)
	}
	logger.Info("platform fees claimed",
		"claimed", claimed.String(),
		"queue", ledger.BalanceOf(feeQueue, cfg.FeeToken).String(),
		"platform", ledger.BalanceOf(platformRecipient, cfg.FeeToken).String(),
	)

	gaugeSim.FundEmission(proxyAddr, "CRV", tokens(20))
	if err := boost.ClaimBoostFees(poolID); err != nil {
		logger.Error("boost fee claim failed", "err", err)
		os.Exit(1)
	}
	logger.Info("boost fees routed", "treasury", ledger.BalanceOf(treasury, "CRV").String())

	// Let the stream run, then settle the user's rewards.
	clock += int64(cfg.RewardDurationSeconds)
	paid, err := userVault.GetReward(user)
	if err != nil {
		logger.Error("reward claim failed", "err", err)
		os.Exit(1)
	}
	for token, amount := range paid {
		logger.Info("reward paid", "token", token, "amount", amount.String())
	}

	// Derived boost telemetry.
	utils := poolutils.New(poolReg, proxyAddr)
	utils.SetERC20Resolver(func(target crypto.Address) gauge.ERC20Gauge {
		if target.Equal(gaugeTarget) {
			return gaugeSim
		}
		return nil
	})
	ratio, err := utils.PoolBoostRatioByID(poolID)
	if err != nil {
		logger.Error("boost ratio query failed", "err", err)
		os.Exit(1)
	}
	logger.Info("pool boost ratio", "pool", poolID, "ray", ratio.String())

	// Derivative burn: whatever landed on the burner is destroyed.
	if err := burner.BurnAtSender(user, tokens(1)); err != nil {
		logger.Error("burn failed", "err", err)
		os.Exit(1)
	}
	supply, _ := ledger.GetTokenSupply(cfg.LiquidToken)
	logger.Info("derivative supply after burn", "supply", supply.String())

	fmt.Println("simulation complete")
}
