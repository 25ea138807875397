package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.Global.CachePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CachePath = absCache

	if !cfg.Global.UsesRemoteSource() {
		absSource, err := filepath.Abs(cfg.Global.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析源图目录: %w", err)
		}
		cfg.Global.SourcePath = absSource
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CachePath", "./cache")
	v.SetDefault("SourcePath", "./media")
	v.SetDefault("SourceTimeout", "30s")
	v.SetDefault("CacheTTL", 86400)
	v.SetDefault("SweepInterval", "10m")
	v.SetDefault("SizeMode", SizeModeBounded)
	v.SetDefault("MinWidth", 16)
	v.SetDefault("MaxWidth", 2048)
	v.SetDefault("MinHeight", 16)
	v.SetDefault("MaxHeight", 2048)
	v.SetDefault("DefaultWidth", 800)
	v.SetDefault("DefaultHeight", 800)
	v.SetDefault("TransformTimeout", "10s")
	v.SetDefault("OutputQuality", 85)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(24 * time.Hour)
	}
	if g.SourceTimeout.DurationValue() == 0 {
		g.SourceTimeout = Duration(30 * time.Second)
	}
	if g.TransformTimeout.DurationValue() == 0 {
		g.TransformTimeout = Duration(10 * time.Second)
	}
	if g.DefaultWidth == 0 {
		g.DefaultWidth = 800
	}
	if g.DefaultHeight == 0 {
		g.DefaultHeight = 800
	}
	if mode := strings.TrimSpace(g.SizeMode); mode != "" {
		g.SizeMode = strings.ToLower(mode)
	} else {
		g.SizeMode = SizeModeBounded
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
