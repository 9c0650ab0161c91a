// Package config loads the configuration of the rxswitch demo command.
// 配置优先级：命令行参数 > 环境变量（RXSWITCH_ 前缀）> YAML 配置文件 > 默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "RXSWITCH"

// 配置键，同时也是命令行参数名
const (
	KeyName     = "name"
	KeySnapshot = "snapshot-period"
	KeyTrades   = "trades-period"
	KeyQuotes   = "quotes-period"
	KeyDuration = "duration"
	KeyDrain    = "drain"
)

// ErrInvalid 配置校验失败
var ErrInvalid = errors.New("invalid configuration")

// Config demo 命令的配置
type Config struct {
	// Name 操作符名称，出现在日志和指标中
	Name string `mapstructure:"name"`
	// SnapshotPeriod 主流（快照）的发射间隔
	SnapshotPeriod time.Duration `mapstructure:"snapshot-period"`
	// TradesPeriod 成交流的发射间隔
	TradesPeriod time.Duration `mapstructure:"trades-period"`
	// QuotesPeriod 报价流的发射间隔
	QuotesPeriod time.Duration `mapstructure:"quotes-period"`
	// Duration 运行时长，0 表示直到收到信号
	Duration time.Duration `mapstructure:"duration"`
	// Drain 主流完成后等待辅助流耗尽
	Drain bool `mapstructure:"drain"`
}

// Default 默认配置
func Default() Config {
	return Config{
		Name:           "orderbook",
		SnapshotPeriod: time.Second,
		TradesPeriod:   150 * time.Millisecond,
		QuotesPeriod:   400 * time.Millisecond,
	}
}

// RegisterFlags 注册 demo 命令的参数
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String(KeyName, def.Name, "operator name used in logs and metrics")
	flags.Duration(KeySnapshot, def.SnapshotPeriod, "period of the primary snapshot stream")
	flags.Duration(KeyTrades, def.TradesPeriod, "period of the trades stream")
	flags.Duration(KeyQuotes, def.QuotesPeriod, "period of the quotes stream")
	flags.Duration(KeyDuration, def.Duration, "stop after this long (0 runs until interrupted)")
	flags.Bool(KeyDrain, def.Drain, "wait for auxiliary streams after the primary completes")
}

// BindPFlags 把参数绑定到 viper，并启用 RXSWITCH_ 前缀的环境变量
func BindPFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.DefValue != "" {
			v.SetDefault(f.Name, f.DefValue)
		}
	})
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}

// Load 读取可选的 YAML 配置文件，然后解码并校验配置
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv 如果 path 存在，把其中的变量加载到环境中
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate 校验配置
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, fmt.Errorf("%w: name must not be empty", ErrInvalid))
	}
	for key, period := range map[string]time.Duration{
		KeySnapshot: c.SnapshotPeriod,
		KeyTrades:   c.TradesPeriod,
		KeyQuotes:   c.QuotesPeriod,
	} {
		if period <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, key, period))
		}
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyDuration))
	}
	return errors.Join(errs...)
}
