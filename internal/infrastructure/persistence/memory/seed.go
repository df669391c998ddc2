package memory

import (
	"context"
	"time"

	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

// DefaultApplicationCodes mirrors the rows seeded by the SQL migrations.
func DefaultApplicationCodes() []*entity.ApplicationCode {
	return []*entity.ApplicationCode{
		{ID: "appcode-exp", Code: entity.CodeExpense, Name: "経費精算", Description: "立替経費の精算"},
		{ID: "appcode-trp", Code: entity.CodeTransportation, Name: "交通費精算", Description: "出張・移動にかかった交通費の精算"},
		{ID: "appcode-lev", Code: entity.CodeLeave, Name: "休暇申請", Description: "有給・特別休暇の申請"},
		{ID: "appcode-apl", Code: entity.CodeRingi, Name: "稟議書", Description: "決裁を要する案件の稟議"},
		{ID: "appcode-dly", Code: entity.CodeDailyReport, Name: "日報", Description: "日次業務報告"},
		{ID: "appcode-wkr", Code: entity.CodeWeeklyReport, Name: "週報", Description: "週次業務報告"},
	}
}

// SeedApplicationCodes loads DefaultApplicationCodes into store
func SeedApplicationCodes(ctx context.Context, store *Store) error {
	repo := NewApplicationCodeRepository(store)
	now := time.Now().UTC()
	for _, c := range DefaultApplicationCodes() {
		c.CreatedAt = now
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
