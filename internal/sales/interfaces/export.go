package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	sales "secursales/internal/sales/domain"
)

const dateLayout = "2006-01-02"

// BuildLedgerPDF renders the payment statement of a ledger.
func BuildLedgerPDF(doc sales.LedgerDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Releve de paiement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Paiement: %s", doc.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Commande: %s", doc.OrderID))
	pdf.Ln(5)
	if doc.ClientID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Client: %s", doc.ClientID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s", doc.Kind))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Statut: %s", doc.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Edite le: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Montant initial: %d XOF", doc.TotalOwed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Montant paye: %d XOF", doc.AmountPaid))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reste a payer: %d XOF", doc.Remaining))
	pdf.Ln(8)

	if len(doc.Entries) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(15, 6, "No", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Type", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Echeance", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Montant", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Paye", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Statut", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, entry := range doc.Entries {
			pdf.CellFormat(15, 6, fmt.Sprintf("%d", entry.Numero), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, string(entry.Type), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, entry.DueDate.Format(dateLayout), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", entry.Amount), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", entry.AmountPaid), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, string(entry.Status), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders the payment statement of a ledger as a workbook
// with a summary sheet and a schedule sheet.
func BuildLedgerXLSX(doc sales.LedgerDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "paiement"
	entriesSheet := "echeances"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Paiement", doc.ID},
		{"Commande", doc.OrderID},
		{"Client", doc.ClientID},
		{"Type", string(doc.Kind)},
		{"Statut", string(doc.Status)},
		{"Montant initial", doc.TotalOwed},
		{"Montant paye", doc.AmountPaid},
		{"Reste a payer", doc.Remaining},
	}
	for i, row := range summary {
		line := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", line), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", line), row[1])
	}

	headers := []string{"numero", "type", "dateEcheance", "montant", "montantPaye", "statut", "datePaiement"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(entriesSheet, cell, header)
	}
	for i, entry := range doc.Entries {
		row := i + 2
		paidAt := ""
		if entry.PaidAt != nil {
			paidAt = entry.PaidAt.Format(dateLayout)
		}
		values := []any{entry.Numero, string(entry.Type), entry.DueDate.Format(dateLayout), entry.Amount, entry.AmountPaid, string(entry.Status), paidAt}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(entriesSheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
