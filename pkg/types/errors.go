package types

import "errors"

// 公共错误定义
var (
	// ErrInvalidEndpoint 无效的端点
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidPort 端口超出范围
	ErrInvalidPort = errors.New("port out of range")
)
