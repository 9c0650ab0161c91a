// Package logging builds the slog.Logger used by the rxswitch command.
// 日志配置来自环境变量，支持 text（tint）与 json 两种格式，可选按大小滚动的日志文件。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	// Level 日志级别：debug、info、warn、error
	Level string `env:"RXSWITCH_LOG_LEVEL" envDefault:"info"`

	// Format text 或 json
	Format string `env:"RXSWITCH_LOG_FORMAT" envDefault:"text"`

	// Output 日志文件路径，为空时写到 stderr
	Output string `env:"RXSWITCH_LOG_OUTPUT"`

	// MaxSizeMB 单个日志文件的最大尺寸
	MaxSizeMB int `env:"RXSWITCH_LOG_MAX_SIZE_MB" envDefault:"64"`

	// MaxBackups 保留的旧日志文件数量
	MaxBackups int `env:"RXSWITCH_LOG_MAX_BACKUPS" envDefault:"3"`

	// Source 是否记录代码位置
	Source bool `env:"RXSWITCH_LOG_SOURCE" envDefault:"false"`

	// DisableTime 不输出时间字段，便于比较输出
	DisableTime bool `env:"RXSWITCH_LOG_DISABLE_TIME" envDefault:"false"`
}

// ParseEnv 从环境变量读取日志配置
func ParseEnv() (Config, error) {
	var conf Config
	if err := env.Parse(&conf); err != nil {
		return conf, fmt.Errorf("parse log env: %w", err)
	}
	return conf, nil
}

// ParseLevel 把字符串转换为 slog.Level，无法识别时返回 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 按配置创建 logger。conf.Output 为空时写到 fallback。
// 返回的 io.Closer 关闭日志文件，没有文件时为空操作。
func New(conf Config, fallback io.Writer) (*slog.Logger, io.Closer) {
	writer := fallback
	var closer io.Closer = nopCloser{}
	if conf.Output != "" {
		file := &lumberjack.Logger{
			Filename:   conf.Output,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
		}
		writer = file
		closer = file
	}
	return slog.New(NewHandler(writer, conf)), closer
}

// NewHandler 创建 text 或 json 格式的 handler
func NewHandler(w io.Writer, conf Config) slog.Handler {
	level := ParseLevel(conf.Level)
	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if conf.DisableTime && a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		return a
	}

	if strings.EqualFold(conf.Format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   conf.Source,
			Level:       level,
			ReplaceAttr: replaceAttr,
		})
	}

	return tint.NewHandler(w, &tint.Options{
		AddSource:   conf.Source,
		Level:       level,
		ReplaceAttr: replaceAttr,
		NoColor:     true,
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
