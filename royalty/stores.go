package royalty

import (
	"context"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// gormDirectory reads the label/client/contract chain from MySQL.
type gormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) DirectoryStore {
	return gormDirectory{db: db}
}

func (s gormDirectory) LabelByID(ctx context.Context, id int) (*models.Label, error) {
	return models.GetLabelById(s.db.WithContext(ctx), id)
}

func (s gormDirectory) LabelByName(ctx context.Context, name string, caseSensitive bool) (*models.Label, error) {
	label, err := models.GetLabelByName(s.db.WithContext(ctx), name, caseSensitive)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return label, nil
}

func (s gormDirectory) ClientByID(ctx context.Context, id int) (*models.Client, error) {
	return models.GetClientById(s.db.WithContext(ctx), id)
}

func (s gormDirectory) DistributionContract(ctx context.Context, clientID int) (*models.Contract, error) {
	contract, err := models.GetDistributionContract(s.db.WithContext(ctx), clientID)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return contract, nil
}

type gormRecords struct {
	db *gorm.DB
}

func NewGormRecordSink(db *gorm.DB) RecordSink {
	return gormRecords{db: db}
}

func (s gormRecords) SaveRecord(ctx context.Context, record interface{}) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// NewPipelineFor wires a pipeline over gorm-backed stores for one
// distributor. The db handle may be a transaction.
func NewPipelineFor(db *gorm.DB, logger *logrus.Logger, d models.Distributor) (*Pipeline, error) {
	strategy, err := StrategyFor(d)
	if err != nil {
		return nil, err
	}
	return NewPipeline(
		strategy,
		NewResolver(NewGormDirectory(db)),
		NewGormRecordSink(db),
		NewGormBucketStore(db),
		logger,
	), nil
}
