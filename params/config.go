package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Vault struct {
	// Caps are USD6 decimal strings (six implied decimal places).
	GlobalCapUsd6   string
	WithdrawCapUsd6 string

	// MaxPriceAge arms the oracle staleness check when nonzero.
	// Zero keeps the check dormant.
	MaxPriceAge time.Duration

	// NativePrice, when set, seeds a manual native feed at startup
	// (decimal string at NativePriceDecimals precision). Empty disables
	// native-asset operations for the life of the process.
	NativePrice         string
	NativePriceDecimals uint8

	AdminAddr string
	DBPath    string
}

type API struct {
	ListenAddr     string
	AllowedOrigins []string
}

type Gossip struct {
	Enabled    bool
	ListenAddr string
	Bootstrap  []string
}

type Config struct {
	Vault  Vault
	API    API
	Gossip Gossip
}

func Default() Config {
	return Config{
		Vault: Vault{
			GlobalCapUsd6:       "1000000000000", // $1,000,000.000000
			WithdrawCapUsd6:     "100000000000",  // $100,000.000000
			MaxPriceAge:         0,               // staleness check dormant
			NativePriceDecimals: 8,
			AdminAddr:           "0x0000000000000000000000000000000000000001",
			DBPath:              "data/vaultd.db",
		},
		API: API{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Gossip: Gossip{
			Enabled:    false,
			ListenAddr: "/ip4/0.0.0.0/tcp/9000",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("VAULT_GLOBAL_CAP_USD6"); v != "" {
		cfg.Vault.GlobalCapUsd6 = v
	}
	if v := os.Getenv("VAULT_WITHDRAW_CAP_USD6"); v != "" {
		cfg.Vault.WithdrawCapUsd6 = v
	}
	if v := os.Getenv("VAULT_MAX_PRICE_AGE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Vault.MaxPriceAge = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("VAULT_NATIVE_PRICE"); v != "" {
		cfg.Vault.NativePrice = v
	}
	if v := os.Getenv("VAULT_NATIVE_PRICE_DECIMALS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d >= 0 && d <= 77 {
			cfg.Vault.NativePriceDecimals = uint8(d)
		}
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		cfg.Vault.AdminAddr = v
	}
	if v := os.Getenv("VAULT_DB_PATH"); v != "" {
		cfg.Vault.DBPath = v
	}
	if v := os.Getenv("API_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GOSSIP_ENABLED"); v != "" {
		cfg.Gossip.Enabled = v == "true"
	}
	if v := os.Getenv("GOSSIP_LISTEN_ADDR"); v != "" {
		cfg.Gossip.ListenAddr = v
	}
	if v := os.Getenv("GOSSIP_BOOTSTRAP"); v != "" {
		cfg.Gossip.Bootstrap = strings.Split(v, ",")
	}

	return cfg
}
