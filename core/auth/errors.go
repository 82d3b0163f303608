package auth

import "errors"

// ErrorCode classifies a failure surfaced to callers.
type ErrorCode string

const (
	CodeInvalidCredentials  ErrorCode = "invalid_credentials"
	CodeDuplicateAccount    ErrorCode = "duplicate_account"
	CodeUnconfirmedEmail    ErrorCode = "unconfirmed_email"
	CodeWeakPassword        ErrorCode = "weak_password"
	CodeMalformedEmail      ErrorCode = "malformed_email"
	CodeConfirmationPending ErrorCode = "confirmation_pending" // informational, not a failure
	CodeNotFound            ErrorCode = "not_found"
	CodePermissionDenied    ErrorCode = "permission_denied"
	CodeTransportFailure    ErrorCode = "transport_failure"
	CodeValidationFailure   ErrorCode = "validation_failure"
)

// Fixed user-facing messages. No raw provider text crosses the store
// boundary; known provider errors are replaced with these.
const (
	MsgSignInFailed       = "حدث خطأ أثناء تسجيل الدخول"
	MsgSignUpFailed       = "حدث خطأ أثناء إنشاء الحساب"
	MsgConfirmPending     = "تم إنشاء الحساب بنجاح. يرجى تأكيد بريدك الإلكتروني أولاً عبر الرابط المرسل."
	MsgInvalidCredentials = "بيانات الدخول غير صحيحة"
	MsgDuplicateAccount   = "هذا البريد الإلكتروني مسجل مسبقاً"
	MsgUnconfirmedEmail   = "يرجى تأكيد بريدك الإلكتروني أولاً"
	MsgWeakPassword       = "كلمة المرور ضعيفة جداً"
	MsgMalformedEmail     = "البريد الإلكتروني غير صالح"
	MsgSignInRequired     = "يجب تسجيل الدخول أولاً"
)

// Error is the classified error marker returned by store operations.
// Error() yields the fixed user-facing message; the cause stays wrapped.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

func NewError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// Classify maps a provider failure to a classified Error with a localized
// message; unrecognized failures fall back to the given message as a
// transport failure.
func Classify(err error, fallback string) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return NewError(CodeInvalidCredentials, MsgInvalidCredentials, err)
	case errors.Is(err, ErrAccountExists):
		return NewError(CodeDuplicateAccount, MsgDuplicateAccount, err)
	case errors.Is(err, ErrEmailNotConfirmed):
		return NewError(CodeUnconfirmedEmail, MsgUnconfirmedEmail, err)
	case errors.Is(err, ErrWeakPassword):
		return NewError(CodeWeakPassword, MsgWeakPassword, err)
	case errors.Is(err, ErrInvalidEmail):
		return NewError(CodeMalformedEmail, MsgMalformedEmail, err)
	default:
		return NewError(CodeTransportFailure, fallback, err)
	}
}
