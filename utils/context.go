package utils

import (
	"context"
	"errors"
	"strings"
)

// IsContextCanceled 检查错误是否由上下文取消或超时导致
func IsContextCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// 部分驱动和 SDK 只保留错误文本
	msg := err.Error()
	return strings.Contains(msg, "context canceled") || strings.Contains(msg, "context deadline exceeded")
}
