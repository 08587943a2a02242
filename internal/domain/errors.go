package domain

import "fmt"

// 错误分类：
//   - DataIntegrityError：条目引用了不存在的资源或班次，属于致命错误，中止整次调用
//   - InvalidStateError：在不允许的状态下修改或发布方案
//   - NotFoundError：方案或月份不存在
//   - ComputeError：流水线内部不变量被破坏时的兜底错误，始终按系统故障记录日志
//
// 业务规则的发现（Violation）是正常的成功输出，永远不通过 error 返回。
// 任何一类错误都会使 generate / applySuggestion / approve 整体失败，不提交部分状态。

type DataIntegrityError struct {
	Message string
}

func (e *DataIntegrityError) Error() string {
	return e.Message
}

func NewDataIntegrityError(format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Message: fmt.Sprintf(format, args...)}
}

type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

func NewInvalidStateError(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

type ComputeError struct {
	Message string
	Cause   error
}

func (e *ComputeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ComputeError) Unwrap() error {
	return e.Cause
}

func NewComputeError(cause error, format string, args ...any) *ComputeError {
	return &ComputeError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
