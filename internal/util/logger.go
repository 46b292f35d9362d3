package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别, 未知值视为INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF":
		return LogLevelOff
	default:
		return LogLevelInfo
	}
}

var levelStyles = map[LogLevel]lipgloss.Style{
	LogLevelDebug: lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("244")),
	LogLevelInfo:  lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("#548c26")),
	LogLevelWarn:  lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("#a89022")),
	LogLevelError: lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("196")),
}

// LogManager 日志管理器
type LogManager struct {
	Level       LogLevel
	IsWriteFile bool
	LogFilePath string
	NoColor     bool
	logMutex    sync.Mutex
	out         io.Writer
}

// Logger 全局日志实例
var Logger *LogManager

func init() {
	Logger = &LogManager{
		Level: LogLevelInfo,
		out:   os.Stderr,
	}
}

// SetLogLevel 设置日志级别
func SetLogLevel(level LogLevel) {
	Logger.Level = level
}

// SetOutput redirects console output, nil restores stderr
func (l *LogManager) SetOutput(w io.Writer) {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if w == nil {
		w = os.Stderr
	}
	l.out = w
}

// InitLogFile 初始化日志文件
func (l *LogManager) InitLogFile() error {
	if !l.IsWriteFile {
		return nil
	}

	var logDir string
	if l.LogFilePath != "" {
		logDir = filepath.Dir(l.LogFilePath)
	} else {
		exePath, err := os.Executable()
		if err != nil {
			logDir = "Logs"
		} else {
			logDir = filepath.Join(filepath.Dir(exePath), "Logs")
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	if l.LogFilePath == "" {
		l.LogFilePath = filepath.Join(logDir, time.Now().Format("2006-01-02_15-04-05-000")+".log")
	}

	now := time.Now()
	initContent := fmt.Sprintf("LOG %s\n", now.Format("2006/01/02"))
	initContent += fmt.Sprintf("Task Start: %s\n", now.Format("2006/01/02 15:04:05"))
	initContent += fmt.Sprintf("Task CommandLine: %s\n\n", strings.Join(os.Args, " "))

	return os.WriteFile(l.LogFilePath, []byte(initContent), 0644)
}

func (l *LogManager) writeToFile(content string) {
	if !l.IsWriteFile || l.LogFilePath == "" {
		return
	}
	file, err := os.OpenFile(l.LogFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return
	}
	defer file.Close()
	file.WriteString(content + "\n")
}

func getCurrentTime() string {
	return time.Now().Format("15:04:05.000")
}

func formatMessage(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (l *LogManager) log(level LogLevel, format string, args ...interface{}) {
	if l.Level > level {
		return
	}
	message := formatMessage(format, args...)
	timeStr := getCurrentTime()
	tag := fmt.Sprintf("%-5s", level.String())
	plain := fmt.Sprintf("%s %s: %s", timeStr, tag, message)

	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if l.NoColor {
		fmt.Fprintln(l.out, plain)
	} else {
		styled := levelStyles[level].Render(level.String()) + strings.Repeat(" ", len(tag)-len(level.String()))
		fmt.Fprintf(l.out, "%s %s: %s\n", timeStr, styled, message)
	}
	l.writeToFile(plain)
}

// Debug 输出调试日志
func (l *LogManager) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// Info 输出信息日志
func (l *LogManager) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Warn 输出警告日志
func (l *LogManager) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Error 输出错误日志
func (l *LogManager) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Extra 仅写入文件的额外日志
func (l *LogManager) Extra(format string, args ...interface{}) {
	if !l.IsWriteFile || l.LogFilePath == "" {
		return
	}
	message := formatMessage(format, args...)
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	l.writeToFile(fmt.Sprintf("%s EXTRA: %s", getCurrentTime(), message))
}
