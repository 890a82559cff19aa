package database

import (
	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/models"
	"gorm.io/gorm"
)

const backfillBatchSize = 500

// BackfillLedgerKeys computes entry_key for ledger entries written before the
// key existed. It only touches rows whose key is empty, so running it again
// is a no-op.
func BackfillLedgerKeys(db *gorm.DB) (int, error) {
	var entries []models.PaymentLedgerEntry
	updated := 0
	err := db.Where("entry_key = ? OR entry_key IS NULL", "").
		FindInBatches(&entries, backfillBatchSize, func(tx *gorm.DB, batch int) error {
			for _, e := range entries {
				key := fingerprint.LedgerKey(e.EnrollmentID, e.BankNormalized, e.ReceiptNormalized, e.PaymentDate)
				if err := db.Model(&models.PaymentLedgerEntry{}).
					Where("id = ?", e.ID).
					Update("entry_key", key).Error; err != nil {
					return err
				}
				updated++
			}
			return nil
		}).Error
	return updated, err
}
