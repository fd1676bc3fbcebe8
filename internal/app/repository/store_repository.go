package repository

import (
	"context"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"gorm.io/gorm"
)

type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	BulkCreate(ctx context.Context, stores []model.Store) error
	FindAll(ctx context.Context) ([]model.Store, error)
	FindByID(ctx context.Context, id uint) (*model.Store, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Store, error)
}

type storeRepository struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) Create(ctx context.Context, store *model.Store) error {
	logger.Debug("Creating store in database", map[string]interface{}{
		"name":          store.Name,
		"owner_user_id": store.OwnerUserID,
	})

	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		logger.Error("Failed to create store in database", err, map[string]interface{}{
			"name": store.Name,
		})
		return err
	}

	logger.Debug("Store created in database", map[string]interface{}{
		"store_id": store.ID,
		"name":     store.Name,
	})
	return nil
}

// BulkCreate 매장 일괄 등록 (seed CLI)
func (r *storeRepository) BulkCreate(ctx context.Context, stores []model.Store) error {
	if len(stores) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(stores, 100).Error; err != nil {
		logger.Error("Failed to bulk create stores", err, map[string]interface{}{
			"count": len(stores),
		})
		return err
	}

	logger.Info("Stores bulk created", map[string]interface{}{
		"count": len(stores),
	})
	return nil
}

// FindAll 분할 시 매장명 조회에 쓰이는 전체 매장 목록
func (r *storeRepository) FindAll(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	if err := r.db.WithContext(ctx).Order("id").Find(&stores).Error; err != nil {
		logger.Error("Failed to list stores", err)
		return nil, err
	}

	logger.Debug("Stores listed", map[string]interface{}{
		"count": len(stores),
	})
	return stores, nil
}

func (r *storeRepository) FindByID(ctx context.Context, id uint) (*model.Store, error) {
	logger.Debug("Finding store by ID", map[string]interface{}{
		"store_id": id,
	})

	var store model.Store
	if err := r.db.WithContext(ctx).First(&store, id).Error; err != nil {
		logger.Error("Failed to find store", err, map[string]interface{}{
			"store_id": id,
		})
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Store, error) {
	if len(ids) == 0 {
		return []model.Store{}, nil
	}

	var stores []model.Store
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&stores).Error; err != nil {
		logger.Error("Failed to find stores by IDs", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}
	return stores, nil
}
