// Package logger 装配进程级 zap 日志,并提供 trace_id 的上下文透传。
package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

type contextKey string

// traceIDKey 链路标识在 context.Context 中的键
const traceIDKey contextKey = "trace_id"

// Init 装配全局日志
// level: debug/info/warn/error,非法值回落到 info
// format: json(生产采集) 或 console(本地调试,带色彩)
// outputPath: stdout/stderr 或日志文件路径
func Init(level, format, outputPath string) error {
	sink, err := openSink(outputPath)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(newEncoder(format), sink, parseLevel(level))
	globalLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// parseLevel 解析日志级别
func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// newEncoder 按格式构建编码器,时间统一为 ISO8601
func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// openSink 打开日志输出目标,路径为空时默认标准输出
func openSink(outputPath string) (zapcore.WriteSyncer, error) {
	switch outputPath {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件 %s 失败: %w", outputPath, err)
		}
		return zapcore.AddSync(f), nil
	}
}

// Get 返回全局 Logger,未初始化时直接 panic 暴露装配错误
func Get() *zap.Logger {
	if globalLogger == nil {
		panic("日志系统未初始化，请先调用 Init()")
	}
	return globalLogger
}

// WithTraceID 将链路标识写入上下文
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID 从上下文读出链路标识,不存在时返回空串
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 返回附加了链路标识字段的 Logger
func WithContext(ctx context.Context) *zap.Logger {
	l := Get()
	if traceID := GetTraceID(ctx); traceID != "" {
		l = l.With(zap.String("trace_id", traceID))
	}
	return l
}

// Debug 输出调试日志
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

// Info 输出常规日志
func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// Fatal 输出致命错误日志并退出进程
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// Sync 刷出缓冲中的日志,进程退出前调用
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
