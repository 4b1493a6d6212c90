package logger

import (
	"testing"

	"go.uber.org/zap"

	"learnhub/config"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("format=%s 初始化失败: %v", format, err)
		}
		if !l.Core().Enabled(zap.DebugLevel) {
			t.Errorf("format=%s 期望启用 debug 级别", format)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "loud"}); err == nil {
		t.Error("无效日志级别应返回错误")
	}
}

func TestWithRequestID_Empty(t *testing.T) {
	base := zap.NewNop()
	if WithRequestID(base, "") != base {
		t.Error("空 request id 应返回原日志器")
	}
}
