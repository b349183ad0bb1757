package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SubmitExtractionActivity)
	w.RegisterActivity(a.PollExtractionActivity)
	w.RegisterActivity(a.CheckDuplicateActivity)
	w.RegisterActivity(a.ReserveInvoiceActivity)
	w.RegisterActivity(a.MatchLineItemsActivity)
	w.RegisterActivity(a.PersistScoresActivity)
	w.RegisterActivity(a.RedactDocumentActivity)
	w.RegisterActivity(a.WriteAuditActivity)
}
