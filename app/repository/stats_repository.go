package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chouha-community/gatekeeper/app/models"
)

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository instance
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

// AddToDay adds counter deltas to the given day's row, creating it on first use.
func (r *statsRepository) AddToDay(day string, welcomes, verifications, roles int64) error {
	row := models.DailyStats{
		Day:           day,
		WelcomesSent:  welcomes,
		Verifications: verifications,
		RolesGranted:  roles,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"welcomes_sent": gorm.Expr("welcomes_sent + ?", welcomes),
			"verifications": gorm.Expr("verifications + ?", verifications),
			"roles_granted": gorm.Expr("roles_granted + ?", roles),
		}),
	}).Create(&row).Error
}

func (r *statsRepository) GetDay(day string) (*models.DailyStats, error) {
	var row models.DailyStats
	err := r.db.Where("day = ?", day).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
