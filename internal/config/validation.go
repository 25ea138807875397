package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.CachePath == "" {
		return newFieldError("Global.CachePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.SweepInterval.DurationValue() < 0 {
		return newFieldError("Global.SweepInterval", "不能为负数")
	}
	if g.TransformTimeout.DurationValue() <= 0 {
		return newFieldError("Global.TransformTimeout", "必须大于 0")
	}
	if g.OutputQuality < 1 || g.OutputQuality > 100 {
		return newFieldError("Global.OutputQuality", "必须在 1-100")
	}
	if g.DefaultWidth <= 0 || g.DefaultHeight <= 0 {
		return newFieldError("Global.DefaultWidth/DefaultHeight", "必须大于 0")
	}

	if g.UsesRemoteSource() {
		if err := validateSourceURL(g.SourceURL); err != nil {
			return fmt.Errorf("Global.SourceURL: %w", err)
		}
		if g.SourceTimeout.DurationValue() <= 0 {
			return newFieldError("Global.SourceTimeout", "必须大于 0")
		}
	} else if g.SourcePath == "" {
		return newFieldError("Global.SourcePath", "不能为空")
	}

	switch g.SizeMode {
	case SizeModeStrict:
		return c.validateStrictSizes()
	case SizeModeBounded:
		return c.validateBounds()
	default:
		return newFieldError("Global.SizeMode", "仅支持 strict|bounded")
	}
}

func (c *Config) validateStrictSizes() error {
	if len(c.Sizes) == 0 {
		return errors.New("strict 模式至少需要配置一个 Size")
	}

	seen := map[string]struct{}{}
	defaultAllowed := false
	for i, size := range c.Sizes {
		if size.Width <= 0 {
			return newFieldError(sizeField(i, "Width"), "必须大于 0")
		}
		if size.Height <= 0 {
			return newFieldError(sizeField(i, "Height"), "必须大于 0")
		}
		key := fmt.Sprintf("%dx%d", size.Width, size.Height)
		if _, exists := seen[key]; exists {
			return newFieldError(sizeField(i, "Width/Height"), "重复")
		}
		seen[key] = struct{}{}
		if size.Width == c.Global.DefaultWidth && size.Height == c.Global.DefaultHeight {
			defaultAllowed = true
		}
	}

	if !defaultAllowed {
		return newFieldError("Global.DefaultWidth/DefaultHeight", "默认尺寸必须出现在 Size 列表中")
	}
	return nil
}

func (c *Config) validateBounds() error {
	g := c.Global
	if g.MinWidth <= 0 || g.MinHeight <= 0 {
		return newFieldError("Global.MinWidth/MinHeight", "必须大于 0")
	}
	if g.MaxWidth < g.MinWidth {
		return newFieldError("Global.MaxWidth", "不能小于 MinWidth")
	}
	if g.MaxHeight < g.MinHeight {
		return newFieldError("Global.MaxHeight", "不能小于 MinHeight")
	}
	if g.DefaultWidth < g.MinWidth || g.DefaultWidth > g.MaxWidth ||
		g.DefaultHeight < g.MinHeight || g.DefaultHeight > g.MaxHeight {
		return newFieldError("Global.DefaultWidth/DefaultHeight", "默认尺寸必须落在区间内")
	}
	return nil
}

func validateSourceURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("无法解析 URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少主机名")
	}
	return nil
}
