package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env string `env:"ENV" envDefault:"dev"`

	HTTPAddr      string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	CORSOrigin    string `env:"CORS_ORIGIN" envDefault:""`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:""`

	DBDSN         string `env:"DB_DSN,required"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"/app/migrations"`

	// Ledger.
	Web3RPCURL            string        `env:"WEB3_RPC_URL,required"`
	AnchorContractAddress string        `env:"ANCHOR_CONTRACT_ADDRESS,required"`
	AnchorerPrivateKey    string        `env:"ANCHORER_PRIVATE_KEY,required"` // path to the key file, never the key itself
	ChainID               int64  `env:"CHAIN_ID" envDefault:"80002"`
	Web3GasLimit          uint64 `env:"WEB3_GAS_LIMIT" envDefault:"200000"`
	Web3ReceiptTimeoutSec int    `env:"WEB3_RECEIPT_TIMEOUT" envDefault:"120"`

	// Attestation keys.
	SignerKeyPath      string `env:"SIGNER_KEY_PATH,required"`
	PlatformPubkeyPath string `env:"PLATFORM_PUBKEY_PATH,required"`

	// Optional Vault secret backend; plain files are used when unset.
	VaultAddr  string `env:"VAULT_ADDR" envDefault:""`
	VaultToken string `env:"VAULT_TOKEN" envDefault:""`

	// Queue / batcher knobs. Interval knobs are plain integer seconds so the
	// env contract stays language-independent.
	VisibilityTimeoutSec  int `env:"VISIBILITY_TIMEOUT_SECONDS" envDefault:"300"`
	MaxRetries            int `env:"MAX_RETRIES" envDefault:"5"`
	BatchLimit            int `env:"BATCH_LIMIT" envDefault:"5"`
	ActivePollIntervalSec int `env:"ACTIVE_POLL_INTERVAL" envDefault:"10"`
	IdlePollIntervalSec   int `env:"IDLE_POLL_INTERVAL" envDefault:"300"`
	IdleThresholdMinutes  int `env:"IDLE_THRESHOLD_MINUTES" envDefault:"30"`

	// Intake.
	TrackingTokenSecret string `env:"TRACKING_TOKEN_SECRET,required"`
	DefaultSalt         string `env:"DEFAULT_SALT" envDefault:""`

	// Optional similarity side-write index.
	RedisAddr string `env:"REDIS_ADDR" envDefault:""`
}

func (c Config) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilityTimeoutSec) * time.Second
}

func (c Config) Web3ReceiptTimeout() time.Duration {
	return time.Duration(c.Web3ReceiptTimeoutSec) * time.Second
}

func (c Config) ActivePollInterval() time.Duration {
	return time.Duration(c.ActivePollIntervalSec) * time.Second
}

func (c Config) IdlePollInterval() time.Duration {
	return time.Duration(c.IdlePollIntervalSec) * time.Second
}

func (c Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdMinutes) * time.Minute
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
