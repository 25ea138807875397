package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPResolver 构建 HTTP 源图后端；baseURL 指向原图站点的根路径。
func NewHTTPResolver(baseURL string, timeout time.Duration) (Resolver, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("source url must be http or https")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &httpResolver{
		base: parsed,
		client: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		},
	}, nil
}

type httpResolver struct {
	base   *url.URL
	client *http.Client
}

func (r *httpResolver) Fingerprint(ctx context.Context, sourcePath string) (string, error) {
	target, err := r.assetURL(sourcePath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}
	return headerFingerprint(resp), nil
}

func (r *httpResolver) Resolve(ctx context.Context, sourcePath string) (*Asset, error) {
	target, err := r.assetURL(sourcePath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(payload)
	}

	return &Asset{
		Bytes:       payload,
		Fingerprint: headerFingerprint(resp),
		ContentType: contentType,
	}, nil
}

func (r *httpResolver) assetURL(sourcePath string) (string, error) {
	rel := path.Clean("/" + sourcePath)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", ErrNotFound
	}

	joined := *r.base
	joined.Path = path.Join(r.base.Path, rel)
	return joined.String(), nil
}

// headerFingerprint 依次取 ETag、Content-Length + Last-Modified 作为指纹，
// 两者都缺失时退化为响应时间戳（等价于禁用缓存复用）。
func headerFingerprint(resp *http.Response) string {
	if etag := strings.TrimSpace(resp.Header.Get("Etag")); etag != "" {
		return etag
	}
	length := resp.Header.Get("Content-Length")
	modified := resp.Header.Get("Last-Modified")
	if length != "" || modified != "" {
		return length + "-" + modified
	}
	return fmt.Sprintf("volatile-%x", time.Now().UnixNano())
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, status)
	}
}
