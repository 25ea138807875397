package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 尺寸策略模式，决定请求尺寸如何被校验。
const (
	SizeModeStrict  = "strict"
	SizeModeBounded = "bounded"
)

// GlobalConfig 描述全局运行时行为，整个服务共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	CachePath     string   `mapstructure:"CachePath"`
	CacheTTL      Duration `mapstructure:"CacheTTL"`
	SweepInterval Duration `mapstructure:"SweepInterval"`

	SourcePath    string   `mapstructure:"SourcePath"`
	SourceURL     string   `mapstructure:"SourceURL"`
	SourceTimeout Duration `mapstructure:"SourceTimeout"`

	SizeMode      string `mapstructure:"SizeMode"`
	MinWidth      int    `mapstructure:"MinWidth"`
	MaxWidth      int    `mapstructure:"MaxWidth"`
	MinHeight     int    `mapstructure:"MinHeight"`
	MaxHeight     int    `mapstructure:"MaxHeight"`
	DefaultWidth  int    `mapstructure:"DefaultWidth"`
	DefaultHeight int    `mapstructure:"DefaultHeight"`

	TransformTimeout Duration `mapstructure:"TransformTimeout"`
	OutputQuality    int      `mapstructure:"OutputQuality"`
}

// SizeConfig 表示 strict 模式下允许的单个 (宽, 高) 组合。
type SizeConfig struct {
	Width  int `mapstructure:"Width"`
	Height int `mapstructure:"Height"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Sizes  []SizeConfig `mapstructure:"Size"`
}

// UsesRemoteSource 表示源图是否通过 HTTP 后端读取。
func (g GlobalConfig) UsesRemoteSource() bool {
	return strings.TrimSpace(g.SourceURL) != ""
}

// SourceMode 输出 `remote` 或 `local`，供日志字段使用。
func (g GlobalConfig) SourceMode() string {
	if g.UsesRemoteSource() {
		return "remote"
	}
	return "local"
}

// SizeList 返回所有允许尺寸的 `WxH` 摘要，例如 [200x200 800x800]。
func SizeList(sizes []SizeConfig) []string {
	if len(sizes) == 0 {
		return nil
	}
	result := make([]string, len(sizes))
	for i, s := range sizes {
		result[i] = fmt.Sprintf("%dx%d", s.Width, s.Height)
	}
	return result
}
