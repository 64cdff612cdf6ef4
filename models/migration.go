package models

import (
	"log"

	"bitbucket.org/mmdatafocus/royalty_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Label{}, &Client{}, &Contract{},
		&ImportBatch{},
		&KontorRecord{}, &BelieveRecord{},
		&UnlinkedBucket{}, &UnlinkedRow{}, &FailedRecord{},
		&BaseReport{}, &UserReport{},
		&RoyaltyTransaction{}, &Balance{},
		&Document{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
