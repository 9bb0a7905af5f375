package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"bazaar/crypto"
	"bazaar/fees"
)

// AuthSecretEnv overrides the on-disk RPC auth secret when set.
const AuthSecretEnv = "BAZAAR_AUTH_SECRET"

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	NetworkName    string `toml:"NetworkName"`
	FeeRateBps     uint32 `toml:"FeeRateBps"`
	PlatformWallet string `toml:"PlatformWallet"`
	Authority      string `toml:"Authority"`
	LogFile        string `toml:"LogFile"`
	AuthSecret     string `toml:"AuthSecret"`
	AuthIssuer     string `toml:"AuthIssuer"`
	AuthAudience   string `toml:"AuthAudience"`
	OTLPEndpoint   string `toml:"OTLPEndpoint"`
	AllowFaucet    bool   `toml:"AllowFaucet"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if secret := strings.TrimSpace(os.Getenv(AuthSecretEnv)); secret != "" {
		cfg.AuthSecret = secret
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bazaar-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "bazaar-local"
	}
	if cfg.FeeRateBps == 0 {
		cfg.FeeRateBps = fees.DefaultPlatformBps
	}
}

// Validate rejects configurations the daemon cannot safely start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if !fees.ValidBps(cfg.FeeRateBps) {
		return fmt.Errorf("config: FeeRateBps out of range: %d", cfg.FeeRateBps)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown StorageBackend %q", cfg.StorageBackend)
	}
	if strings.TrimSpace(cfg.PlatformWallet) == "" {
		return fmt.Errorf("config: PlatformWallet required")
	}
	if _, err := crypto.DecodeAddress(cfg.PlatformWallet); err != nil {
		return fmt.Errorf("config: invalid PlatformWallet: %w", err)
	}
	if trimmed := strings.TrimSpace(cfg.Authority); trimmed != "" {
		if _, err := crypto.DecodeAddress(trimmed); err != nil {
			return fmt.Errorf("config: invalid Authority: %w", err)
		}
	}
	return nil
}

// createDefault writes a default configuration file with freshly generated
// platform and authority identities so a dev node starts without ceremony.
func createDefault(path string) (*Config, error) {
	platformKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	authorityKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		PlatformWallet: platformKey.PubKey().Address().String(),
		Authority:      authorityKey.PubKey().Address().String(),
		AllowFaucet:    true,
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
