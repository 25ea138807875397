package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NewLocalResolver 以 root 为根目录构建本地磁盘后端。
func NewLocalResolver(root string) (Resolver, error) {
	if root == "" {
		return nil, errors.New("source path required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat source path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", abs)
	}
	return &localResolver{root: abs}, nil
}

type localResolver struct {
	root string
}

func (r *localResolver) Fingerprint(ctx context.Context, sourcePath string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	filePath, err := r.assetPath(sourcePath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", classifyFSError(err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return localFingerprint(info), nil
}

func (r *localResolver) Resolve(ctx context.Context, sourcePath string) (*Asset, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := r.assetPath(sourcePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, classifyFSError(err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		return nil, classifyFSError(err)
	}

	return &Asset{
		Bytes:       payload,
		Fingerprint: localFingerprint(info),
		ContentType: detectContentType(filePath, payload),
	}, nil
}

// assetPath 将请求路径映射进 root，并拒绝任何逃逸尝试。
func (r *localResolver) assetPath(sourcePath string) (string, error) {
	rel := path.Clean("/" + sourcePath)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", ErrNotFound
	}

	filePath := filepath.Join(r.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(filePath, r.root+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	return filePath, nil
}

// localFingerprint 由大小 + 修改时间组成，内容变化必然改变指纹。
func localFingerprint(info fs.FileInfo) string {
	return fmt.Sprintf("%x-%x", info.Size(), info.ModTime().UnixNano())
}

func classifyFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// detectContentType 优先按扩展名判断，失败时嗅探正文前 512 字节。
func detectContentType(filePath string, payload []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(payload)
}
