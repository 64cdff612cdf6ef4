package royalty

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func renderCSV(strategy DistributorStrategy, scope ExportScope, records []interface{}, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(strategy.ExportHeader(scope)); err != nil {
		return err
	}
	for _, record := range records {
		row, err := strategy.ExportRow(scope, record)
		if err != nil {
			return err
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func renderXLSX(strategy DistributorStrategy, scope ExportScope, records []interface{}, path string) error {
	f := excelize.NewFile()
	sheet := "Sheet1"

	for i, label := range strategy.ExportHeader(scope) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, label)
	}
	for rowNo, record := range records {
		row, err := strategy.ExportRow(scope, record)
		if err != nil {
			return err
		}
		for colNo, value := range row {
			cell, err := excelize.CoordinatesToCellName(colNo+1, rowNo+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheet, cell, value)
		}
	}
	return f.SaveAs(path)
}

// exportReport renders rows to a temp file, hands it to the blob store and
// records the Document. format is "csv" or "xlsx".
func exportReport(ctx context.Context, db *gorm.DB, blobs BlobStore, d models.Distributor, baseReportId int, userReportId *int, format string) (*models.Document, error) {
	strategy, err := StrategyFor(d)
	if err != nil {
		return nil, err
	}

	scope := ExportScopeBase
	if userReportId != nil {
		scope = ExportScopeClient
	}

	records, err := strategy.Records(db, baseReportId, userReportId)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "royalty-export-*."+format)
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if format == "xlsx" {
		err = renderXLSX(strategy, scope, records, tmpPath)
	} else {
		err = renderCSV(strategy, scope, records, tmpPath)
	}
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("base-%d", baseReportId)
	refType, refId := models.DocumentReferenceBaseReport, baseReportId
	if userReportId != nil {
		target = fmt.Sprintf("user-%d", *userReportId)
		refType, refId = models.DocumentReferenceUserReport, *userReportId
	}
	objectKey := fmt.Sprintf("royalty-exports/%s/%s-%s.%s", d, target, utils.GenerateUniqueFilename(), format)

	stored, err := blobs.Upload(ctx, objectKey, tmpPath)
	if err != nil {
		return nil, fmt.Errorf("archive export: %w", err)
	}

	doc := models.Document{
		ObjectKey:     stored.ObjectKey,
		DocumentUrl:   stored.URL,
		FileName:      fmt.Sprintf("%s-%s.%s", d, target, format),
		SizeBytes:     stored.Size,
		ReferenceType: refType,
		ReferenceID:   refId,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		if userReportId != nil {
			return tx.Model(&models.UserReport{}).
				Where("id = ?", *userReportId).
				Update("archived_object_key", stored.ObjectKey).Error
		}
		return tx.Model(&models.BaseReport{}).
			Where("id = ?", baseReportId).
			Update("archived_object_key", stored.ObjectKey).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func ExportBaseReportCSV(ctx context.Context, db *gorm.DB, blobs BlobStore, baseReportId int) (*models.Document, error) {
	base, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return nil, err
	}
	return exportReport(ctx, db, blobs, base.Distributor, baseReportId, nil, "csv")
}

func ExportBaseReportXLSX(ctx context.Context, db *gorm.DB, blobs BlobStore, baseReportId int) (*models.Document, error) {
	base, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return nil, err
	}
	return exportReport(ctx, db, blobs, base.Distributor, baseReportId, nil, "xlsx")
}

func ExportUserReportCSV(ctx context.Context, db *gorm.DB, blobs BlobStore, userReportId int) (*models.Document, error) {
	user, err := models.GetUserReportById(db, userReportId)
	if err != nil {
		return nil, err
	}
	base, err := models.GetBaseReportById(db, user.BaseReportId)
	if err != nil {
		return nil, err
	}
	return exportReport(ctx, db, blobs, base.Distributor, base.ID, &userReportId, "csv")
}
