package config

// EnvConfigKey 通过配置环境变量来实现更细节地控制某些逻辑
const (
	// MpdMinimumSegmentSize 静态SegmentTemplate中, 小于此秒数的末尾分片视为取整误差
	MpdMinimumSegmentSize = "MPD_MINIMUM_SEGMENT_SIZE"

	// MpdMaximumTimeRoundingError 比较分片边界时容忍的误差(秒)
	MpdMaximumTimeRoundingError = "MPD_MAXIMUM_TIME_ROUNDING_ERROR"

	// MpdFallbackLifetime minimumUpdatePeriod为0时使用的刷新间隔(秒)
	MpdFallbackLifetime = "MPD_FALLBACK_LIFETIME"

	// MpdLogLevel 日志级别: DEBUG, INFO, WARN, ERROR, OFF
	MpdLogLevel = "MPD_LOG_LEVEL"

	// MpdServeAddr serve命令监听地址
	MpdServeAddr = "MPD_SERVE_ADDR"

	// MpdHTTPRetryCount 获取xlink与时钟资源的重试次数
	MpdHTTPRetryCount = "MPD_HTTP_RETRY_COUNT"
)
