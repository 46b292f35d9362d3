package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mpdcore/internal/config"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// SegmentWindow is a time window, in seconds
type SegmentWindow struct {
	From     float64 `json:"from"`
	Duration float64 `json:"duration"`
}

// MyOption 命令行选项结构体
type MyOption struct {
	// 基础输入
	Input string `json:"input"`

	// HTTP相关
	Headers     map[string]string `json:"headers,omitempty"`
	CustomProxy string            `json:"custom_proxy,omitempty"`
	RetryCount  int               `json:"retry_count"`
	RetryDelay  time.Duration     `json:"retry_delay"`

	// 日志和调试
	LogLevel    util.LogLevel `json:"log_level"`
	LogFilePath string        `json:"log_file_path,omitempty"`
	WriteLog    bool          `json:"write_log"`
	NoAnsiColor bool          `json:"no_ansi_color"`

	// 解析
	// ReferenceDateTime in seconds since the unix epoch
	ReferenceDateTime *float64 `json:"reference_date_time,omitempty"`

	// inspect
	Segments          *SegmentWindow `json:"segments,omitempty"`
	Interactive       bool           `json:"interactive"`
	JSON              bool           `json:"json"`
	RepresentationIDs []string       `json:"representation_ids,omitempty"`

	// serve
	Addr string `json:"addr,omitempty"`
}

// NewMyOption 创建新的选项实例
func NewMyOption() *MyOption {
	return &MyOption{
		Headers:    make(map[string]string),
		RetryCount: config.GetEnvInt(config.MpdHTTPRetryCount, util.DefaultRetryConfig.MaxRetries),
		RetryDelay: util.DefaultRetryConfig.RetryDelay,
		LogLevel:   util.ParseLogLevel(config.GetEnv(config.MpdLogLevel, "INFO")),
		Addr:       config.GetEnv(config.MpdServeAddr, ":8080"),
	}
}

// Validate 验证选项的合法性
func (opt *MyOption) Validate() error {
	if opt.Input == "" {
		return errors.New("input URL or file is required")
	}
	if opt.RetryCount < 0 {
		opt.RetryCount = 0
	}
	if opt.Segments != nil && opt.Segments.Duration < 0 {
		return fmt.Errorf("negative segment window duration %g", opt.Segments.Duration)
	}
	return nil
}

// RetryConfig returns the retry policy of resource fetches
func (opt *MyOption) RetryConfig() util.RetryConfig {
	cfg := util.DefaultRetryConfig
	cfg.MaxRetries = opt.RetryCount
	if opt.RetryDelay > 0 {
		cfg.RetryDelay = opt.RetryDelay
	}
	return cfg
}

// String 返回选项的字符串表示
func (opt *MyOption) String() string {
	return fmt.Sprintf("MyOption{Input: %s, RetryCount: %d, LogLevel: %v}", opt.Input, opt.RetryCount, opt.LogLevel)
}

// ParseSegmentWindow reads "from,duration" in seconds
func ParseSegmentWindow(s string) (*SegmentWindow, error) {
	fromStr, durationStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("invalid segment window %q, expected from,duration", s)
	}
	from, err := strconv.ParseFloat(strings.TrimSpace(fromStr), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid segment window start %q: %w", fromStr, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid segment window duration %q: %w", durationStr, err)
	}
	return &SegmentWindow{From: from, Duration: duration}, nil
}

// ParseHeaders 解析 "Name: value" 形式的请求头
func ParseHeaders(headers []string) (map[string]string, error) {
	res := make(map[string]string, len(headers))
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q", h)
		}
		res[name] = strings.TrimSpace(value)
	}
	return res, nil
}

// optionFromFlags collects the flags of cmd into a MyOption
func optionFromFlags(cmd *cobra.Command, args []string) (*MyOption, error) {
	opt := NewMyOption()
	if len(args) > 0 {
		opt.Input = args[0]
	}
	flags := cmd.Flags()

	headers, _ := flags.GetStringSlice("header")
	parsed, err := ParseHeaders(headers)
	if err != nil {
		return nil, err
	}
	opt.Headers = parsed
	opt.CustomProxy, _ = flags.GetString("custom-proxy")
	if flags.Changed("retry-count") {
		opt.RetryCount, _ = flags.GetInt("retry-count")
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		opt.LogLevel = util.ParseLogLevel(level)
	}
	opt.LogFilePath, _ = flags.GetString("log-file-path")
	opt.WriteLog, _ = flags.GetBool("write-log")
	opt.NoAnsiColor, _ = flags.GetBool("no-ansi-color")

	if ref, _ := flags.GetString("reference-date-time"); ref != "" {
		seconds, err := ir.ParseDateTime(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid reference date time %q: %w", ref, err)
		}
		opt.ReferenceDateTime = &seconds
	}

	if flags.Lookup("segments") != nil {
		if window, _ := flags.GetString("segments"); window != "" {
			if opt.Segments, err = ParseSegmentWindow(window); err != nil {
				return nil, err
			}
		}
		opt.Interactive, _ = flags.GetBool("interactive")
		opt.JSON, _ = flags.GetBool("json")
		opt.RepresentationIDs, _ = flags.GetStringSlice("representation")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		opt.Addr, _ = flags.GetString("addr")
	}

	return opt, opt.Validate()
}
