package app

import (
	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
)

// zapLogger 把zap适配成kratos的log.Logger，biz/data层统一用后者
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewKratosLogger 基于zap创建kratos日志器
func NewKratosLogger(z *zap.Logger) log.Logger {
	// 跳过适配层的调用帧
	return &zapLogger{sugar: z.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

// Log 实现log.Logger
func (l *zapLogger) Log(level log.Level, keyvals ...interface{}) error {
	switch level {
	case log.LevelDebug:
		l.sugar.Debugw("", keyvals...)
	case log.LevelInfo:
		l.sugar.Infow("", keyvals...)
	case log.LevelWarn:
		l.sugar.Warnw("", keyvals...)
	case log.LevelError:
		l.sugar.Errorw("", keyvals...)
	case log.LevelFatal:
		l.sugar.Fatalw("", keyvals...)
	default:
		l.sugar.Infow("", keyvals...)
	}
	return nil
}
