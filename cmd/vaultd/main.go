package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/solera-fi/vaultd/params"
	"github.com/solera-fi/vaultd/pkg/api"
	"github.com/solera-fi/vaultd/pkg/bank"
	"github.com/solera-fi/vaultd/pkg/feed"
	"github.com/solera-fi/vaultd/pkg/oracle"
	"github.com/solera-fi/vaultd/pkg/util"
	"github.com/solera-fi/vaultd/pkg/vault"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load .env from current directory

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/vaultd.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	globalCap, err := uint256.FromDecimal(cfg.Vault.GlobalCapUsd6)
	if err != nil {
		sugar.Fatalw("bad_global_cap", "value", cfg.Vault.GlobalCapUsd6, "err", err)
	}
	withdrawCap, err := uint256.FromDecimal(cfg.Vault.WithdrawCapUsd6)
	if err != nil {
		sugar.Fatalw("bad_withdraw_cap", "value", cfg.Vault.WithdrawCapUsd6, "err", err)
	}
	if !common.IsHexAddress(cfg.Vault.AdminAddr) {
		sugar.Fatalw("bad_admin_addr", "value", cfg.Vault.AdminAddr)
	}
	admin := common.HexToAddress(cfg.Vault.AdminAddr)

	// Native feed is fixed for the life of the process; unset price
	// disables native-asset operations on this instance.
	var nativeFeed vault.PriceFeed
	if cfg.Vault.NativePrice != "" {
		price, err := uint256.FromDecimal(cfg.Vault.NativePrice)
		if err != nil {
			sugar.Fatalw("bad_native_price", "value", cfg.Vault.NativePrice, "err", err)
		}
		mf := oracle.NewManualFeed(cfg.Vault.NativePriceDecimals, util.RealClock{})
		mf.Set(price.ToBig())
		nativeFeed = mf
	} else {
		sugar.Warnw("native_asset_disabled", "reason", "no native price configured")
	}

	store, err := vault.OpenStore(cfg.Vault.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Vault.DBPath, "err", err)
	}
	defer store.Close()

	assetBank := bank.NewLocal()

	// Sinks: structured log always; WS hub and gossip attached below.
	sinks := vault.MultiSink{vault.LogSink{Log: sugar}}

	v, err := vault.New(vault.Options{
		Admin:       admin,
		GlobalCap:   globalCap,
		WithdrawCap: withdrawCap,
		NativeFeed:  nativeFeed,
		Decimals:    assetBank,
		Bank:        assetBank,
		Store:       store,
		Sink:        &sinks,
		Logger:      sugar,
		MaxPriceAge: cfg.Vault.MaxPriceAge,
	})
	if err != nil {
		sugar.Fatalw("vault_init_failed", "err", err)
	}
	sugar.Infow("vault_ready",
		"admin", admin.Hex(),
		"global_cap_usd6", globalCap.Dec(),
		"withdraw_cap_usd6", withdrawCap.Dec(),
		"max_price_age", cfg.Vault.MaxPriceAge,
		"global_value_usd6", v.GlobalValueTotal().Dec(),
	)

	server := api.NewServer(v, assetBank, cfg.API.AllowedOrigins, sugar)
	sinks = append(sinks, server.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Gossip.Enabled {
		pub, err := feed.NewPublisher(ctx, feed.Config{
			ListenAddr: cfg.Gossip.ListenAddr,
			Bootstrap:  cfg.Gossip.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("gossip_init_failed", "err", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	go func() {
		if err := server.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")
}
