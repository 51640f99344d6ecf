package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SymbolConfig names one tradable instrument. cmd/matchd registers a book
// for Symbol; MakerFee and TakerFee are parsed but not read by any
// component (the engine is built with zero fees).
type SymbolConfig struct {
	Symbol   string `yaml:"symbol"`
	MakerFee string `yaml:"maker_fee"`
	TakerFee string `yaml:"taker_fee"`
}

// RiskConfig mirrors trader.RiskConfig in string form as parsed from
// YAML. No code in this repository converts it to trader.RiskConfig.
type RiskConfig struct {
	MaxOrderNotional     string `yaml:"max_order_notional"`
	MaxExposurePerSymbol string `yaml:"max_exposure_per_symbol"`
	RiskPerTradeFraction string `yaml:"risk_per_trade_fraction"`
	DailyLossLimit       string `yaml:"daily_loss_limit"`
}

// FixConfig points at the quickfix session settings file used by
// pkg/fixgateway.
type FixConfig struct {
	SettingsFile string `yaml:"settings_file"`
}

// KafkaConfig configures the trade-event producer in pkg/eventstream.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	TradeTopic string   `yaml:"trade_topic"`
}

// NatsConfig configures the MPSC ingress worker in pkg/ingress.
type NatsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type AppConfig struct {
	ServiceName string           `yaml:"service_name"`
	Strategy    string           `yaml:"strategy"` // FIFO or PRO_RATA
	Symbols     []SymbolConfig   `yaml:"symbols"`
	DefaultRisk RiskConfig       `yaml:"default_risk"`
	Fix         FixConfig        `yaml:"fix"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Nats        NatsConfig       `yaml:"nats"`
}

// Load reads config from filePath, falling back to $CONFIG_FILE, then
// expands environment variables before parsing YAML.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("loading config")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)
	return cfg, nil
}
