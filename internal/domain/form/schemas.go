package form

import (
	"fmt"
	"time"

	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// ExpenseForm is the EXP payload.
type ExpenseForm struct {
	Title string        `json:"title" validate:"required,max=200"`
	Items []ExpenseItem `json:"items" validate:"required,min=1,dive"`
	Note  string        `json:"note,omitempty" validate:"max=2000"`
}

// ExpenseItem is one expense line.
type ExpenseItem struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"required"`
	AccountItem string `json:"account_item,omitempty"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	HasReceipt  bool   `json:"has_receipt"`
}

// Total sums the line amounts.
func (f *ExpenseForm) Total() int64 {
	var total int64
	for _, it := range f.Items {
		total += it.Amount
	}
	return total
}

// TransportationForm is the TRP payload.
type TransportationForm struct {
	Trips []Trip `json:"trips" validate:"required,min=1,dive"`
}

// Trip is one journey.
type Trip struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Fare      int64  `json:"fare" validate:"gt=0"`
	RoundTrip bool   `json:"round_trip"`
	Purpose   string `json:"purpose,omitempty"`
}

// LeaveForm is the LEV payload.
type LeaveForm struct {
	LeaveType string `json:"leave_type" validate:"required,oneof=paid sick special unpaid"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"required"`
}

// Validate checks the date range.
func (f *LeaveForm) Validate() error {
	return checkRange(f.StartDate, f.EndDate)
}

// RingiForm is the APL payload.
type RingiForm struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Purpose     string `json:"purpose" validate:"required"`
	Amount      int64  `json:"amount" validate:"gte=0"`
	DesiredDate string `json:"desired_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// DailyReportForm is the DLY payload.
type DailyReportForm struct {
	ReportDate string  `json:"report_date" validate:"required,datetime=2006-01-02"`
	Content    string  `json:"content" validate:"required"`
	Hours      float64 `json:"hours" validate:"gte=0,lte=24"`
	Issues     string  `json:"issues,omitempty"`
}

// WeeklyReportForm is the WKR payload.
type WeeklyReportForm struct {
	WeekStart    string `json:"week_start" validate:"required,datetime=2006-01-02"`
	Summary      string `json:"summary" validate:"required"`
	NextWeekPlan string `json:"next_week_plan,omitempty"`
}

// DefaultRegistry returns a registry with the six standard codes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Definition{Code: entity.CodeExpense, New: func() interface{} { return &ExpenseForm{} }})
	r.Register(Definition{Code: entity.CodeTransportation, New: func() interface{} { return &TransportationForm{} }})
	r.Register(Definition{Code: entity.CodeLeave, New: func() interface{} { return &LeaveForm{} }})
	r.Register(Definition{Code: entity.CodeRingi, New: func() interface{} { return &RingiForm{} }})
	r.Register(Definition{Code: entity.CodeDailyReport, New: func() interface{} { return &DailyReportForm{} }})
	r.Register(Definition{Code: entity.CodeWeeklyReport, New: func() interface{} { return &WeeklyReportForm{} }})
	return r
}

func checkRange(start, end string) error {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return err
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return err
	}
	if e.Before(s) {
		return fmt.Errorf("end_date %s is before start_date %s", end, start)
	}
	return nil
}
