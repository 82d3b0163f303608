package session

import "errors"

var (
	// errors
	ErrNotFound      = errors.New("session not found")
	ErrEntryNotFound = errors.New("entry not found")
	ErrAlreadyJoined = errors.New("an entry already exists for this participant")
)

// Fixed user-facing messages surfaced by the store.
const (
	MsgFetchSessions    = "حدث خطأ أثناء جلب الجلسات"
	MsgCreateSession    = "حدث خطأ أثناء إنشاء الجلسة"
	MsgFetchSession     = "حدث خطأ أثناء جلب الجلسة"
	MsgFetchEntries     = "حدث خطأ أثناء جلب البيانات"
	MsgUpdateEntry      = "حدث خطأ أثناء التحديث"
	MsgCreateEntry      = "حدث خطأ أثناء إنشاء الإدخال"
	MsgSessionNotFound  = "لم يتم العثور على الجلسة"
	MsgAlreadyJoined    = "لقد انضممت إلى هذه الجلسة مسبقاً"
	MsgPermissionDenied = "ليس لديك صلاحية لتعديل هذا الإدخال"
	MsgMissingFields    = "يرجى تعبئة جميع الحقول المطلوبة"
)
