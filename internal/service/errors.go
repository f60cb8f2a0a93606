// Package service 包含了控制台会话与各个工作流的业务逻辑层。
package service

import (
	"errors"
	"fmt"

	"hospital-console-go/pkg/backend"
)

var (
	// ErrValidation 本地输入不合法，永远不会到达网络层。
	ErrValidation = errors.New("validation error")
	// ErrConnectivity 后端不可达。
	ErrConnectivity = backend.ErrUnreachable
	// ErrStaleResponse 响应到达时发起它的会话已被销毁或替换。
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrBusy 同一工作流已有请求在途。
	ErrBusy = errors.New("operation already in progress")
	// ErrInvalidState 当前状态机位置不允许该操作。
	ErrInvalidState = errors.New("invalid state for operation")
	ErrNoSession    = errors.New("no active session")
	ErrForbidden    = errors.New("admin role required")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError 携带面向用户的校验信息，并匹配 ErrValidation。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is 让 errors.Is(err, ErrValidation) 成立。
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// GenericChatError 是聊天请求失败时追加到转录中的助手消息。
const GenericChatError = "Sorry, I'm having trouble reaching the hospital assistant right now. Please try again in a moment."

// UserMessage 把错误转换为可以直接展示给用户的文本。后端 detail 原样透出。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Detail
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	switch {
	case errors.Is(err, ErrConnectivity):
		return "Cannot reach the hospital assistant. Check the connection and retry."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	case errors.Is(err, ErrNoSession):
		return "Please select a role to start a session."
	case errors.Is(err, ErrForbidden):
		return "This action is only available to administrators."
	case errors.Is(err, ErrUnauthorized):
		return "Authentication failed."
	case errors.Is(err, ErrStaleResponse):
		return "The session changed before the request completed."
	case errors.Is(err, ErrInvalidState):
		return "This action is not available right now."
	}
	return "Something went wrong. Please try again."
}
