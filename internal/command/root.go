package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"mpdcore/internal/config"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser"
	"mpdcore/internal/util"
)

const VERSION_INFO = "mpdcore (Beta version) 20260615"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mpdcore",
		Short: "DASH MPD解析工具",
		Long: `DASH MPD解析工具
解析MPD清单, 输出周期/轨道/流规格与分片信息, 或以HTTP服务的形式提供`,
		Version:           VERSION_INFO,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupRuntime,
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "INFO", "日志级别: DEBUG, INFO, WARN, ERROR, OFF")
	flags.String("log-file-path", "", "日志文件路径")
	flags.Bool("write-log", false, "写入日志文件")
	flags.Bool("no-ansi-color", false, "关闭ANSI颜色输出")
	flags.StringSliceP("header", "H", nil, "自定义请求头, 如 \"Cookie: a=b\"")
	flags.String("custom-proxy", "", "HTTP代理, 如 http://127.0.0.1:8888")
	flags.Int("retry-count", util.DefaultRetryConfig.MaxRetries, "xlink与时钟资源的重试次数")
	flags.String("reference-date-time", "", "动态MPD缺少availabilityStartTime时使用的参考时间 (ISO 8601)")

	cmd.AddCommand(newInspectCmd(), newServeCmd())
	return cmd
}

// setupRuntime 加载.env并初始化日志
func setupRuntime(cmd *cobra.Command, _ []string) error {
	if err := config.Load(); err != nil {
		util.Logger.Debug("未加载.env: %s", err.Error())
	}

	flags := cmd.Flags()
	level := config.GetEnv(config.MpdLogLevel, "INFO")
	if flags.Changed("log-level") {
		level, _ = flags.GetString("log-level")
	}
	util.SetLogLevel(util.ParseLogLevel(level))

	util.Logger.NoColor, _ = flags.GetBool("no-ansi-color")
	util.Logger.IsWriteFile, _ = flags.GetBool("write-log")
	util.Logger.LogFilePath, _ = flags.GetString("log-file-path")
	if util.Logger.LogFilePath != "" {
		util.Logger.IsWriteFile = true
	}
	if err := util.Logger.InitLogFile(); err != nil {
		return fmt.Errorf("初始化日志文件失败: %w", err)
	}
	util.Logger.Extra("%s", VERSION_INFO)
	return nil
}

// newExtractor 根据选项创建流提取器
func newExtractor(opt *MyOption, met *metrics.Metrics) *parser.StreamExtractor {
	util.SetHTTPProxy(opt.CustomProxy)
	if opt.CustomProxy != "" {
		util.Logger.Info("使用代理: %s", opt.CustomProxy)
	}
	util.DefaultHTTPUtil.Headers = opt.Headers
	return parser.NewStreamExtractor(parser.NewHTTPFetcher(nil, opt.RetryConfig()), parser.Options{
		ReferenceDateTime: opt.ReferenceDateTime,
		Config:            config.ParserConfigFromEnv(),
		Metrics:           met,
	})
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}
