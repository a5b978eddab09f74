package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类。core 层只产生这五类业务错误，
// 传输层负责把它们映射为 HTTP 状态码，不做本地重试/恢复。
type Kind int

const (
	KindInternal        Kind = iota // 未分类（内部错误）
	KindUnauthenticated             // 未认证：principal 无法解析
	KindForbidden                   // 已认证但角色不足
	KindNotFound                    // 引用的实体不存在
	KindConflict                    // 唯一键冲突（车牌号、邮箱、角色名）
	KindBadRequest                  // 非法枚举值 / 非法入参
)

// Error 带分类的业务错误。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// E 构造一个带分类的错误。
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap 在保留分类的同时包装底层错误。
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Unauthenticated / Forbidden / NotFound / Conflict / BadRequest 便捷构造。
func Unauthenticated(msg string) *Error { return E(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return E(KindForbidden, msg) }
func NotFound(msg string) *Error        { return E(KindNotFound, msg) }
func Conflict(msg string) *Error        { return E(KindConflict, msg) }
func BadRequest(msg string) *Error      { return E(KindBadRequest, msg) }

// KindOf 取出错误的分类；非 *Error 一律视为内部错误。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus 把错误分类映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
