package jobs

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/reconciliation"
)

// passTimeout keeps one slow pass from overlapping the next scheduled one.
const passTimeout = 10 * time.Minute

// ReconcileUploadedRecords retries every bank record still waiting for a
// ledger entry. Entries submitted after their statement was imported are
// picked up here.
func ReconcileUploadedRecords(svc *reconciliation.Service) func() {
	return func() {
		log.Println("Running job: ReconcileUploadedRecords...")

		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()

		summary, err := svc.ReconcilePending(ctx)
		if err != nil {
			log.Printf("🔥 Reconciliation pass failed: %v", err)
			return
		}
		if summary.Examined == 0 {
			return
		}
		log.Printf("✅ Reconciliation pass: %d examined, %d reconciled, %d unmatched, %d errors",
			summary.Examined, summary.Reconciled, summary.Unmatched, summary.Errors)
	}
}
