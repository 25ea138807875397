package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ThumbnailFields 提供路径/尺寸/命中状态字段，供缩略图请求日志复用。
func ThumbnailFields(sourcePath string, width, height int, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"source_path": sourcePath,
		"width":       width,
		"height":      height,
		"cache_hit":   cacheHit,
	}
}

// SweepFields 提供清理任务的触发方式与移除数量字段。
func SweepFields(trigger string, removed int) logrus.Fields {
	return logrus.Fields{
		"action":  "cache_sweep",
		"trigger": trigger,
		"removed": removed,
	}
}
