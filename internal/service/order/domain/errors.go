package domain

import "github.com/pkg/errors"

// 订单核心的错误分类。调用方通过 errors.Is 判断类别，接口层据此映射状态码。
var (
	ErrNotFound          = errors.New("order no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("this request was already handled")
	ErrForbidden         = errors.New("action not permitted for this user")
	ErrValidation        = errors.New("validation failed")
)
