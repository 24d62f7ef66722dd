package database

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dealflow-portal/internal/models"
)

// CreateDeal creates a new deal. The ID is derived from the listing ID when
// present, otherwise from the title and creation time, so re-posting the same
// listing does not duplicate the deal.
func (gdb *GormDB) CreateDeal(deal *models.Deal) error {
	if deal.ID == "" {
		seed := deal.ListingID
		if seed == "" {
			seed = fmt.Sprintf("%s:%d", deal.Title, time.Now().UnixNano())
		}
		deal.ID = generateMD5("deal:" + seed)
	}
	if deal.Stage == "" {
		deal.Stage = models.StageFind
	}
	if !models.ValidStage(deal.Stage) {
		return fmt.Errorf("invalid deal stage: %s", deal.Stage)
	}
	return gdb.db.Create(deal).Error
}

// GetDealByID retrieves a deal with its latest analyses attached
func (gdb *GormDB) GetDealByID(id string) (*models.Deal, error) {
	var deal models.Deal
	if err := gdb.db.Where("id = ?", id).First(&deal).Error; err != nil {
		return nil, err
	}
	if err := gdb.attachAnalyses(&deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// GetDeals retrieves deals, optionally filtered by stage, newest first
func (gdb *GormDB) GetDeals(stage models.DealStage) ([]models.Deal, error) {
	query := gdb.db.Order("created_at DESC")
	if stage != "" {
		query = query.Where("stage = ?", stage)
	}

	var deals []models.Deal
	if err := query.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// UpdateDeal saves deal fields. Stage is deliberately excluded: stage moves
// only happen through TransitionDealStage so every move leaves an event.
func (gdb *GormDB) UpdateDeal(deal *models.Deal) error {
	return gdb.db.Model(&models.Deal{}).
		Where("id = ?", deal.ID).
		Updates(map[string]interface{}{
			"title":             deal.Title,
			"address":           deal.Address,
			"notes":             deal.Notes,
			"purchase_price":    deal.PurchasePrice,
			"target_sale_price": deal.TargetSalePrice,
			"current_price":     deal.CurrentPrice,
			"current_profit":    deal.CurrentProfit,
		}).Error
}

// UpdateDealRenovations replaces a deal's renovation selections
func (gdb *GormDB) UpdateDealRenovations(id string, selections models.RenovationSelections) error {
	return gdb.db.Model(&models.Deal{}).
		Where("id = ?", id).
		Update("renovation_selections", selections).Error
}

// DeleteDeal removes a deal and its history
func (gdb *GormDB) DeleteDeal(id string) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deal_id = ?", id).Delete(&models.DealStageEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", id).Delete(&models.AnalysisReport{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", id).Delete(&models.AnalysisJob{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Deal{}).Error
	})
}

// TransitionDealStage validates and applies a pipeline move, recording the
// transition event in the same transaction
func (gdb *GormDB) TransitionDealStage(id string, to models.DealStage, note string) (*models.Deal, error) {
	var deal models.Deal
	err := gdb.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deal).Error; err != nil {
			return err
		}

		if !models.CanTransition(deal.Stage, to) {
			return fmt.Errorf("invalid stage transition: %s -> %s", deal.Stage, to)
		}

		event := models.DealStageEvent{
			DealID:    deal.ID,
			FromStage: deal.Stage,
			ToStage:   to,
			Note:      note,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		deal.Stage = to
		return tx.Model(&models.Deal{}).Where("id = ?", id).Update("stage", to).Error
	})
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// GetDealStageEvents retrieves a deal's pipeline history, oldest first
func (gdb *GormDB) GetDealStageEvents(dealID string) ([]models.DealStageEvent, error) {
	var events []models.DealStageEvent
	err := gdb.db.Where("deal_id = ?", dealID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// SaveAnalysisReport stores one analysis result for a deal
func (gdb *GormDB) SaveAnalysisReport(report *models.AnalysisReport) error {
	return gdb.db.Create(report).Error
}

// GetLatestAnalysisReport retrieves the newest report of one kind for a deal
func (gdb *GormDB) GetLatestAnalysisReport(dealID, kind string) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	err := gdb.db.Where("deal_id = ? AND kind = ?", dealID, kind).
		Order("created_at DESC").
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// attachAnalyses decodes the latest report of each kind onto the deal.
// A missing report means "not yet computed" and is not an error.
func (gdb *GormDB) attachAnalyses(deal *models.Deal) error {
	if report, err := gdb.GetLatestAnalysisReport(deal.ID, models.AnalysisKindMarket); err == nil {
		var ma models.MarketAnalysis
		if jsonErr := json.Unmarshal([]byte(report.Payload), &ma); jsonErr == nil {
			deal.MarketAnalysis = &ma
		}
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	if report, err := gdb.GetLatestAnalysisReport(deal.ID, models.AnalysisKindRenovation); err == nil {
		var ra models.RenovationAnalysis
		if jsonErr := json.Unmarshal([]byte(report.Payload), &ra); jsonErr == nil {
			deal.RenovationAnalysis = &ra
		}
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	if report, err := gdb.GetLatestAnalysisReport(deal.ID, models.AnalysisKindRisk); err == nil {
		var ra models.RiskAnalysis
		if jsonErr := json.Unmarshal([]byte(report.Payload), &ra); jsonErr == nil {
			deal.RiskAnalysis = &ra
		}
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	return nil
}

// EnqueueAnalysis adds pending analysis jobs for a deal. Already-pending jobs
// of the same kind are not duplicated.
func (gdb *GormDB) EnqueueAnalysis(dealID string, kinds []string, priority int) (int, error) {
	enqueued := 0
	for _, kind := range kinds {
		var count int64
		err := gdb.db.Model(&models.AnalysisJob{}).
			Where("deal_id = ? AND kind = ? AND status IN ?", dealID, kind,
				[]string{models.JobStatusPending, models.JobStatusProcessing}).
			Count(&count).Error
		if err != nil {
			return enqueued, err
		}
		if count > 0 {
			continue
		}

		job := models.AnalysisJob{
			DealID:   dealID,
			Kind:     kind,
			Status:   models.JobStatusPending,
			Priority: priority,
		}
		if err := gdb.db.Create(&job).Error; err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}
