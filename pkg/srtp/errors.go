package srtp

import (
	"errors"
	"fmt"
)

// SecureErrorCode определяет типизированные коды ошибок защищенного транспорта.
// Позволяет классифицировать ошибки по категориям и обрабатывать их
// соответствующим образом, не разбирая текст сообщений.
type SecureErrorCode int

const (
	// Ошибки состояния транспорта
	ErrorCodeTransportInactive SecureErrorCode = iota + 2000
	ErrorCodeTransportClosed

	// Ошибки установки ключей
	ErrorCodeKeyRejected
	ErrorCodeKeyLengthInvalid
	ErrorCodeSuiteUnsupported
	ErrorCodeRtcpParamsAlreadySet

	// Ошибки обработки пакетов
	ErrorCodeProtectFailed
	ErrorCodeUnprotectFailed
	ErrorCodeBufferCapacity

	// Ошибки внешней аутентификации
	ErrorCodeExternalAuthInactive
)

// String возвращает строковое представление кода ошибки
func (code SecureErrorCode) String() string {
	switch code {
	case ErrorCodeTransportInactive:
		return "TransportInactive"
	case ErrorCodeTransportClosed:
		return "TransportClosed"
	case ErrorCodeKeyRejected:
		return "KeyRejected"
	case ErrorCodeKeyLengthInvalid:
		return "KeyLengthInvalid"
	case ErrorCodeSuiteUnsupported:
		return "SuiteUnsupported"
	case ErrorCodeRtcpParamsAlreadySet:
		return "RtcpParamsAlreadySet"
	case ErrorCodeProtectFailed:
		return "ProtectFailed"
	case ErrorCodeUnprotectFailed:
		return "UnprotectFailed"
	case ErrorCodeBufferCapacity:
		return "BufferCapacity"
	case ErrorCodeExternalAuthInactive:
		return "ExternalAuthInactive"
	default:
		return "Unknown"
	}
}

// SecureError типизированная ошибка защищенного транспорта с кодом
// и опциональной обернутой причиной
type SecureError struct {
	Code    SecureErrorCode
	Message string
	Cause   error
}

func (e *SecureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

func (e *SecureError) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать ошибки по коду через errors.Is
func (e *SecureError) Is(target error) bool {
	var se *SecureError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// newSecureError создает ошибку с кодом без причины
func newSecureError(code SecureErrorCode, message string) *SecureError {
	return &SecureError{Code: code, Message: message}
}

// wrapSecureError создает ошибку с кодом, оборачивая причину
func wrapSecureError(code SecureErrorCode, message string, cause error) *SecureError {
	return &SecureError{Code: code, Message: message, Cause: cause}
}

// Сентинельные ошибки для errors.Is проверок вызывающей стороной
var (
	ErrTransportInactive    = newSecureError(ErrorCodeTransportInactive, "транспорт не активен")
	ErrRtcpParamsAlreadySet = newSecureError(ErrorCodeRtcpParamsAlreadySet, "параметры SRTCP уже установлены")
	ErrExternalAuthInactive = newSecureError(ErrorCodeExternalAuthInactive, "внешняя аутентификация не активна")
)
