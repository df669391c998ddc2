package entity

// Application status values
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
)

// History action values
const (
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Default application codes seeded on first migration
const (
	CodeExpense        = "EXP" // 経費精算
	CodeTransportation = "TRP" // 交通費精算
	CodeLeave          = "LEV" // 休暇申請
	CodeRingi          = "APL" // 稟議書
	CodeDailyReport    = "DLY" // 日報
	CodeWeeklyReport   = "WKR" // 週報
)
