package workbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"hopdong/internal/core"
)

// Column names of the summary and listing exports.
const (
	ColMonth   = "month"
	ColQuarter = "quarter"
	ColTotal   = "settled_value"
	ColPaid    = "total_paid"
	ColBalance = "remaining_balance"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Contracts"
)

// numFmtThousands is the built-in "#,##0" number format.
const numFmtThousands = 3

// Banner is the optional company heading of a customer detail sheet.
type Banner struct {
	CompanyName string
	Logo        []byte
	LogoExt     string // ".png", ".jpg", ".jpeg" or ".gif"
}

// LoadBanner builds a banner from a company name and an optional logo file.
func LoadBanner(companyName, logoPath string) (*Banner, error) {
	b := &Banner{CompanyName: strings.TrimSpace(companyName)}
	if logoPath != "" {
		data, err := os.ReadFile(logoPath)
		if err != nil {
			return nil, fmt.Errorf("read logo: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(logoPath))
		switch ext {
		case ".png", ".jpg", ".jpeg", ".gif":
		default:
			return nil, fmt.Errorf("unsupported logo format %q", ext)
		}
		b.Logo, b.LogoExt = data, ext
	}
	if b.Empty() {
		return nil, nil
	}
	return b, nil
}

// Empty reports whether the banner has nothing to show.
func (b *Banner) Empty() bool {
	return b == nil || (b.CompanyName == "" && len(b.Logo) == 0)
}

// WriteMonthlySummary writes one row per month that has contracts.
func WriteMonthlySummary(w io.Writer, totals []core.BucketTotal) error {
	return writeBuckets(w, ColMonth, totals)
}

// WriteQuarterlySummary writes one row per quarter that has contracts.
func WriteQuarterlySummary(w io.Writer, totals []core.BucketTotal) error {
	return writeBuckets(w, ColQuarter, totals)
}

func writeBuckets(w io.Writer, key string, totals []core.BucketTotal) error {
	f, err := newBook(summarySheet)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := writeHeader(f, summarySheet, 1, []string{key, ColTotal}); err != nil {
		return err
	}
	for i, t := range totals {
		if err := setRow(f, summarySheet, i+2, []any{t.Bucket, t.Total}); err != nil {
			return err
		}
	}
	if err := formatMoney(f, summarySheet, "B", 2, len(totals)+1); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteCustomerSummary writes customer totals in the order given.
func WriteCustomerSummary(w io.Writer, totals []core.CustomerTotal) error {
	f, err := newBook(summarySheet)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := writeHeader(f, summarySheet, 1, []string{core.ColCustomerName, ColTotal}); err != nil {
		return err
	}
	for i, t := range totals {
		if err := setRow(f, summarySheet, i+2, []any{t.Customer, t.Total}); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 36); err != nil {
		return err
	}
	if err := formatMoney(f, summarySheet, "B", 2, len(totals)+1); err != nil {
		return err
	}
	return f.Write(w)
}

// ReadCustomerSummary reads a file written by WriteCustomerSummary back
// into a customer to total map.
func ReadCustomerSummary(r io.Reader) (map[string]float64, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	grid, err := f.GetRows(summarySheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	out := map[string]float64{}
	for _, row := range gridRows(grid) {
		name := fmt.Sprint(row[core.ColCustomerName])
		out[name] += core.AmountFromValue(row[ColTotal])
	}
	return out, nil
}

// listingColumns are the persisted columns followed by the derived balances.
var listingColumns = append(append([]string(nil), core.Columns...), ColPaid, ColBalance)

// WriteContracts writes a contract listing with the derived paid and
// remaining amounts.
func WriteContracts(w io.Writer, contracts []core.Contract) error {
	f, err := newBook(detailSheet)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := writeListing(f, detailSheet, 1, contracts); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteCustomerDetail writes every contract of one customer. With a
// banner the logo is anchored at A1, the company name fills the rest of
// row 1 and the listing starts on row 3.
func WriteCustomerDetail(w io.Writer, contracts []core.Contract, banner *Banner) error {
	f, err := customerDetailBook(contracts, banner)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return f.Write(w)
}

func customerDetailBook(contracts []core.Contract, banner *Banner) (*excelize.File, error) {
	f, err := newBook(detailSheet)
	if err != nil {
		return nil, err
	}

	headerRow := 1
	if !banner.Empty() {
		if err := writeBanner(f, detailSheet, banner); err != nil {
			_ = f.Close()
			return nil, err
		}
		headerRow = 3
	}
	if err := writeListing(f, detailSheet, headerRow, contracts); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeBanner(f *excelize.File, sheet string, b *Banner) error {
	lastCol, err := excelize.ColumnNumberToName(len(listingColumns))
	if err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 1, 48); err != nil {
		return err
	}

	if len(b.Logo) > 0 {
		if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
			return err
		}
		pic := &excelize.Picture{
			Extension: b.LogoExt,
			File:      b.Logo,
			Format: &excelize.GraphicOptions{
				AutoFit:         true,
				LockAspectRatio: true,
				OffsetX:         2,
				OffsetY:         2,
			},
		}
		if err := f.AddPictureFromBytes(sheet, "A1", pic); err != nil {
			return fmt.Errorf("add logo: %w", err)
		}
	}

	if b.CompanyName != "" {
		if err := f.SetCellValue(sheet, "B1", b.CompanyName); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, "B1", lastCol+"1"); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 16},
			Alignment: &excelize.Alignment{Vertical: "center"},
		})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "B1", lastCol+"1", style); err != nil {
			return err
		}
	}
	return nil
}

func writeListing(f *excelize.File, sheet string, headerRow int, contracts []core.Contract) error {
	if err := writeHeader(f, sheet, headerRow, listingColumns); err != nil {
		return err
	}
	for i, c := range contracts {
		values := []any{
			c.ContractID,
			c.CustomerName,
			c.SignedDate.String(),
			c.SettledValue,
			c.ContractStatus,
			c.InvoiceStatus,
			c.InvoiceNumber,
			c.InvoiceDate.String(),
			c.PaymentLedger,
			c.TotalPaid,
			c.RemainingBalance,
		}
		if err := setRow(f, sheet, headerRow+1+i, values); err != nil {
			return err
		}
	}
	first, last := headerRow+1, headerRow+len(contracts)
	for _, col := range []string{"D", "J", "K"} {
		if err := formatMoney(f, sheet, col, first, last); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "B", "I", 20)
}

func newBook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, row int, names []string) error {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	if err := setRow(f, sheet, row, values); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(names))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func formatMoney(f *excelize.File, sheet, col string, first, last int) error {
	if last < first {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtThousands})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, fmt.Sprintf("%s%d", col, first), fmt.Sprintf("%s%d", col, last), style)
}
