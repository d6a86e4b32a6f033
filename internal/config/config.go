package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location when set.
const EnvConfigPath = "SIM_CONFIG"

type Config struct {
	Portfolio  Portfolio  `yaml:"portfolio"`
	Strategies Strategies `yaml:"strategies"`
	Market     Market     `yaml:"market"`
	Simulation Simulation `yaml:"simulation"`
	Logging    Logging    `yaml:"logging"`
	Storage    Storage    `yaml:"storage"`
	Kafka      Kafka      `yaml:"kafka"`
	Server     Server     `yaml:"server"`
}

type Portfolio struct {
	InitialCapital         float64   `yaml:"initial_capital"`
	MaxPositionSize        float64   `yaml:"max_position_size"`  // fraction of capital per position
	MaxDailyRisk           float64   `yaml:"max_daily_risk"`     // fraction of capital per day
	StopLossPercentage     float64   `yaml:"stop_loss_percentage"`
	CommissionPerTrade     float64   `yaml:"commission_per_trade"`
	MaxCorrelatedPositions int       `yaml:"max_correlated_positions"`
	MaxTotalPositions      int       `yaml:"max_total_positions"`
	RiskScale              float64   `yaml:"risk_scale"`
	MinCapital             float64   `yaml:"min_capital"`
	Sectors                SectorMap `yaml:"sectors"`
}

type Strategies struct {
	PerDay                int     `yaml:"per_day"`
	MinSignalConfidence   float64 `yaml:"min_signal_confidence"`
	OpportunityConfidence float64 `yaml:"opportunity_confidence"`
	MomentumLookback      int     `yaml:"momentum_lookback"`
	ReversalLookback      int     `yaml:"reversal_lookback"`
	BreakoutLookback      int     `yaml:"breakout_lookback"`
	ScalpingLookback      int     `yaml:"scalping_lookback"`
	HistoryBars           int     `yaml:"history_bars"`
	RSIOversold           float64 `yaml:"rsi_oversold"`
	RSIOverbought         float64 `yaml:"rsi_overbought"`
	StopLossPercentage    float64 `yaml:"-"`
}

type Market struct {
	Tickers         []string      `yaml:"tickers"`
	Timezone        string        `yaml:"timezone"`
	Open            string        `yaml:"open"`
	Close           string        `yaml:"close"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	HistoryBars     int           `yaml:"history_bars"`
	CandleInterval  string        `yaml:"candle_interval"`
	ProviderURL     string        `yaml:"provider_url"`
}

type Simulation struct {
	LoopInterval         time.Duration `yaml:"loop_interval"`
	ClosedMarketInterval time.Duration `yaml:"closed_market_interval"`
	CloseOnExit          bool          `yaml:"close_on_exit"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ExcelPath  string `yaml:"excel_path"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Server struct {
	Port int `yaml:"port"`
}

// SectorMap is a static ticker -> sector classification.
type SectorMap map[string]string

func (m SectorMap) Sector(ticker string) (string, bool) {
	s, ok := m[ticker]
	return s, ok && s != ""
}

var DefaultTickers = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA",
	"META", "NVDA", "AMD", "NFLX", "CRM",
	"ADBE", "ORCL", "INTC", "CSCO", "IBM",
}

// Default returns the configuration the simulator runs with when no file overrides it.
func Default() *Config {
	return &Config{
		Portfolio: Portfolio{
			InitialCapital:         100000,
			MaxPositionSize:        0.02,
			MaxDailyRisk:           0.06,
			StopLossPercentage:     0.02,
			CommissionPerTrade:     1.00,
			MaxCorrelatedPositions: 3,
			MaxTotalPositions:      10,
			RiskScale:              0.5,
			MinCapital:             1000,
		},
		Strategies: Strategies{
			PerDay:                2,
			MinSignalConfidence:   0.6,
			OpportunityConfidence: 0.7,
			MomentumLookback:      20,
			ReversalLookback:      10,
			BreakoutLookback:      15,
			ScalpingLookback:      5,
			HistoryBars:           30,
			RSIOversold:           30,
			RSIOverbought:         70,
		},
		Market: Market{
			Tickers:         append([]string(nil), DefaultTickers...),
			Timezone:        "America/New_York",
			Open:            "09:30",
			Close:           "16:00",
			RefreshInterval: 30 * time.Second,
			HistoryBars:     60,
			CandleInterval:  "1d",
			ProviderURL:     "https://query1.finance.yahoo.com",
		},
		Simulation: Simulation{
			LoopInterval:         30 * time.Second,
			ClosedMarketInterval: 60 * time.Second,
		},
		Logging: Logging{
			Level: "info",
			File:  "logs/simulator.log",
		},
		Storage: Storage{
			SQLitePath: "trading.db",
			ExcelPath:  "trading_log.xlsx",
		},
		Kafka: Kafka{
			Brokers: []string{"localhost:9092"},
			Topic:   "trading.trades",
		},
		Server: Server{
			Port: 8080,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path falls back to $SIM_CONFIG.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger cannot operate with.
func (c *Config) Validate() error {
	p := c.Portfolio
	switch {
	case p.InitialCapital <= 0:
		return errors.New("portfolio.initial_capital must be positive")
	case p.MaxPositionSize <= 0 || p.MaxPositionSize > 1:
		return errors.New("portfolio.max_position_size must be in (0, 1]")
	case p.MaxDailyRisk <= 0 || p.MaxDailyRisk > 1:
		return errors.New("portfolio.max_daily_risk must be in (0, 1]")
	case p.StopLossPercentage <= 0 || p.StopLossPercentage >= 1:
		return errors.New("portfolio.stop_loss_percentage must be in (0, 1)")
	case p.CommissionPerTrade < 0:
		return errors.New("portfolio.commission_per_trade must not be negative")
	case p.MaxTotalPositions <= 0:
		return errors.New("portfolio.max_total_positions must be positive")
	case p.MaxCorrelatedPositions <= 0:
		return errors.New("portfolio.max_correlated_positions must be positive")
	}

	s := c.Strategies
	if s.PerDay <= 0 {
		return errors.New("strategies.per_day must be positive")
	}
	if s.MomentumLookback < 2 || s.ReversalLookback < 1 || s.BreakoutLookback < 1 || s.ScalpingLookback < 1 {
		return errors.New("strategies lookbacks must be positive")
	}
	if s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("strategies.rsi_oversold (%.1f) must be below rsi_overbought (%.1f)", s.RSIOversold, s.RSIOverbought)
	}

	if _, err := ParseClock(c.Market.Open); err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	if _, err := ParseClock(c.Market.Close); err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	if c.Simulation.LoopInterval <= 0 || c.Market.RefreshInterval <= 0 {
		return errors.New("loop_interval and refresh_interval must be positive")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

// StrategySettings returns the strategy section with the portfolio stop-loss filled in.
func (c *Config) StrategySettings() Strategies {
	s := c.Strategies
	s.StopLossPercentage = c.Portfolio.StopLossPercentage
	return s
}

// ParseClock parses an "HH:MM" wall-clock value into minutes after midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
