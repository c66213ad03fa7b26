package domain

import (
	"errors"
	"fmt"
)

// ErrValidation 所有校验失败都可以用 errors.Is 匹配到该错误
var ErrValidation = errors.New("validation failed")

// ValidationError 报价记录校验错误
// 构造失败时同步返回，不做重试
type ValidationError struct {
	// 出错字段，如 vendor_id、instrument_id、price_date、price
	Field string
	// 原因
	Reason string
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidationError 判断错误链中是否存在校验错误
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
