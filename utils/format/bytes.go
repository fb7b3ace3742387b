package format

import "fmt"

const byteUnit = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// HumanReadableSize 将字节数转换为人类可读的格式，负数按 0 处理
func HumanReadableSize(n int64) string {
	if n < 0 {
		n = 0
	}
	if n < byteUnit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	exp := 0
	for value >= byteUnit && exp < len(units)-1 {
		value /= byteUnit
		exp++
	}
	return fmt.Sprintf("%.2f %s", value, units[exp])
}
