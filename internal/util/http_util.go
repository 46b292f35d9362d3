package util

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HTTPStatusError 非2xx响应
type HTTPStatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.URL)
}

// HTTPStatusCode returns the response status
func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// NonRetryableHTTPError 表示不应重试的HTTP异常
type NonRetryableHTTPError struct {
	StatusCode int
	Message    string
}

func (e *NonRetryableHTTPError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the response status
func (e *NonRetryableHTTPError) HTTPStatusCode() int {
	return e.StatusCode
}

// HTTPUtil HTTP工具类
type HTTPUtil struct {
	client  *http.Client
	Headers map[string]string
}

// NewHTTPUtil 创建HTTP工具实例
func NewHTTPUtil() *HTTPUtil {
	return NewHTTPUtilWithProxy("")
}

// NewHTTPUtilWithProxy 创建带代理的HTTP工具实例
func NewHTTPUtilWithProxy(proxyURL string) *HTTPUtil {
	tr := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// 设置代理
	if proxyURL != "" {
		if proxy, err := url.Parse(proxyURL); err == nil {
			tr.Proxy = http.ProxyURL(proxy)
		}
	}

	client := &http.Client{
		Transport: tr,
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 不自动跳转，手动处理以保留headers
			return http.ErrUseLastResponse
		},
	}

	return &HTTPUtil{client: client}
}

// Do 执行HTTP请求
func (h *HTTPUtil) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

func (h *HTTPUtil) doGet(ctx context.Context, urlStr, byteRange string, redirects int) (*http.Response, error) {
	Logger.Debug("正在获取: %s", urlStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cache-Control", "no-cache")
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}
	if byteRange != "" {
		req.Header.Set("Range", "bytes="+byteRange)
	}

	resp, err := h.Do(req)
	if err != nil {
		return nil, err
	}

	// 手动处理重定向
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location != "" && redirects < 10 {
			redirectURL := ResolveURL(urlStr, location)
			if redirectURL != urlStr {
				Logger.Debug("重定向到: %s", redirectURL)
				resp.Body.Close()
				return h.doGet(ctx, redirectURL, byteRange, redirects+1)
			}
		}
	}

	if isNonRetryableStatusCode(resp.StatusCode) {
		resp.Body.Close()
		return nil, &NonRetryableHTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %s: request to %s failed with non-retryable status code", resp.Status, urlStr),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: urlStr}
	}

	return resp, nil
}

// GetBytes 获取字节数据, file: URLs and plain paths are read from disk.
// The returned URL is the one after redirections.
func (h *HTTPUtil) GetBytes(ctx context.Context, urlStr string) ([]byte, string, error) {
	if strings.HasPrefix(urlStr, "file:") {
		fileURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, urlStr, err
		}
		data, err := os.ReadFile(fileURL.Path)
		return data, urlStr, err
	}
	if !IsAbsoluteURL(urlStr) {
		data, err := os.ReadFile(urlStr)
		return data, urlStr, err
	}

	resp, err := h.doGet(ctx, urlStr, "", 0)
	if err != nil {
		return nil, urlStr, err
	}
	defer resp.Body.Close()
	data, err := readBody(resp)
	return data, resp.Request.URL.String(), err
}

// GetRange 获取指定字节范围, start and end are inclusive
func (h *HTTPUtil) GetRange(ctx context.Context, urlStr string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid byte range %d-%d", start, end)
	}
	if strings.HasPrefix(urlStr, "file:") || !IsAbsoluteURL(urlStr) {
		data, _, err := h.GetBytes(ctx, urlStr)
		if err != nil {
			return nil, err
		}
		if start >= int64(len(data)) {
			return nil, fmt.Errorf("byte range %d-%d out of %d bytes", start, end, len(data))
		}
		return data[start:min(end+1, int64(len(data)))], nil
	}

	resp, err := h.doGet(ctx, urlStr, fmt.Sprintf("%d-%d", start, end), 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	// servers ignoring Range answer 200 with the whole resource
	if resp.StatusCode == http.StatusOK && int64(len(data)) > end-start+1 {
		if start >= int64(len(data)) {
			return nil, fmt.Errorf("byte range %d-%d out of %d bytes", start, end, len(data))
		}
		data = data[start:min(end+1, int64(len(data)))]
	}
	return data, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	// 处理 gzip 压缩
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("创建gzip reader失败: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	Logger.Debug("获取到 %d 字节数据", len(data))
	return data, nil
}

// GetBytesWithRetry wraps GetBytes in DoRetry
func (h *HTTPUtil) GetBytesWithRetry(ctx context.Context, urlStr string, config RetryConfig) ([]byte, string, error) {
	var (
		data     []byte
		finalURL string
	)
	err := DoRetry(ctx, func() error {
		var err error
		data, finalURL, err = h.GetBytes(ctx, urlStr)
		return err
	}, config)
	return data, finalURL, err
}

// isNonRetryableStatusCode 检查是否为不可重试的状态码
func isNonRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	default:
		return false
	}
}

// DefaultHTTPUtil 默认的HTTP工具实例
var DefaultHTTPUtil = NewHTTPUtil()

// SetHTTPProxy 设置全局HTTP代理, an empty url goes direct
func SetHTTPProxy(proxyURL string) {
	DefaultHTTPUtil = NewHTTPUtilWithProxy(proxyURL)
}
