// Package export builds the classification hand-off for downstream systems
// and publishes it to Kafka.
package export

import (
	"time"

	"invoicematch/internal/models"
)

type Payload struct {
	TransactionID        string               `json:"transactionId"`
	Timestamp            time.Time            `json:"timestamp"`
	DocumentID           string               `json:"documentId"`
	DocumentData         DocumentData         `json:"documentData"`
	ClassificationResult ClassificationResult `json:"classificationResult"`
	Status               string               `json:"status"`
	Errors               []string             `json:"errors"`
}

type DocumentData struct {
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceDate   string `json:"invoiceDate"`
}

type ClassificationResult struct {
	Products []Product `json:"products"`
}

type Product struct {
	ArticleNumber string  `json:"articleNumber"`
	ArticleName   string  `json:"articleName"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	NetAmount     float64 `json:"netAmount"`
}

// BuildPayload lists every valid line item as a product. Quantities and
// amounts are not extracted yet and are sent as 1 and 0.
func BuildPayload(inv models.ProcessedInvoice, scores []models.LineItemScore, now time.Time) Payload {
	products := make([]Product, 0, len(scores))
	for _, s := range scores {
		if !s.Valid {
			continue
		}
		products = append(products, Product{
			ArticleNumber: s.CatalogID,
			ArticleName:   s.MatchedText,
			Quantity:      1,
		})
	}
	return Payload{
		TransactionID: inv.TransactionID,
		Timestamp:     now.UTC(),
		DocumentID:    inv.DocumentID,
		DocumentData: DocumentData{
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   inv.InvoiceDate,
		},
		ClassificationResult: ClassificationResult{Products: products},
		Status:               "success",
		Errors:               []string{},
	}
}
