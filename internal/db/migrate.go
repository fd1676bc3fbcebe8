package db

import (
	"strconv"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"gorm.io/gorm"
)

// Models 마이그레이션 대상 모델 (테스트 DB와 공유)
func Models() []interface{} {
	return []interface{}{
		&model.Store{},
		&model.Order{},
		&model.OrderItem{},
		&model.Notification{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	linked, err := BackfillParentLinks(DB)
	if err != nil {
		logger.Error("Failed to backfill parent order links", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count":   len(models),
		"backfilled_ids": linked,
	})
	return nil
}

// BackfillParentLinks 레거시 "split from original order <ref>" 마커만 있는 분할 주문에 parent_order_id 채우기
func BackfillParentLinks(db *gorm.DB) (int, error) {
	var legacy []model.Order
	if err := db.Unscoped().
		Select("id", "order_details").
		Where("parent_order_id IS NULL AND LOWER(order_details) LIKE ?", "%split from original order%").
		Find(&legacy).Error; err != nil {
		return 0, err
	}

	linked := 0
	for _, o := range legacy {
		ref, ok := model.ParseSplitMarker(o.OrderDetails)
		if !ok {
			continue
		}

		var parent model.Order
		q := db.Unscoped().Select("id")
		if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
			q = q.Where("id = ? OR code = ?", id, ref)
		} else {
			q = q.Where("code = ?", ref)
		}
		if err := q.Take(&parent).Error; err != nil {
			logger.Warn("Legacy split marker references unknown order", map[string]interface{}{
				"order_id":   o.ID,
				"parent_ref": ref,
			})
			continue
		}
		if parent.ID == o.ID {
			continue
		}

		if err := db.Unscoped().Model(&model.Order{}).
			Where("id = ?", o.ID).
			UpdateColumn("parent_order_id", parent.ID).Error; err != nil {
			return linked, err
		}
		linked++
	}

	return linked, nil
}
