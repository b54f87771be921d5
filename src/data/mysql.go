package data

import (
	"fmt"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&gov.Setting{},
	&gov.Proposal{}, &gov.Vote{},
	&gov.Citizen{}, &gov.ForumPost{}, &gov.Activity{},
	&gov.NetworkState{}, &gov.AIAnalysis{},
	&gov.MirrorEntry{},
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
