package media

import "errors"

// Error kinds surfaced by the service. The HTTP adapter maps them onto
// status codes with errors.Is; dimension errors keep their sizepolicy
// sentinels and are mapped there as well.
var (
	// ErrInvalidRequest 表示路径格式非法（空路径、目录穿越等）。
	ErrInvalidRequest = errors.New("invalid thumbnail request")

	// ErrNotFound 表示源图不存在。
	ErrNotFound = errors.New("source image not found")

	// ErrTransform 表示解码/编码失败或转换超时。
	ErrTransform = errors.New("thumbnail transform failed")

	// ErrStorageUnavailable 表示源存储后端故障。
	ErrStorageUnavailable = errors.New("source storage unavailable")

	// ErrCacheWrite 表示缓存写入失败；仅用于日志，不会传给调用方。
	ErrCacheWrite = errors.New("thumbnail cache write failed")
)
