package workbook

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hopdong/internal/core"
)

// WriteCustomerBundle writes a ZIP archive holding one detail workbook per
// distinct customer, in order of first appearance.
func WriteCustomerBundle(w io.Writer, contracts []core.Contract, banner *Banner) error {
	zw := zip.NewWriter(w)
	used := map[string]bool{}

	for _, customer := range core.Customers(contracts) {
		name := uniqueName(used, FileName(customer)) + ".xlsx"
		f, err := customerDetailBook(core.ContractsByCustomer(contracts, customer), banner)
		if err != nil {
			return fmt.Errorf("build workbook for %q: %w", customer, err)
		}

		part, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("create %s in zip: %w", name, err)
		}
		err = f.Write(part)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("write %s in zip: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip writer: %w", err)
	}
	return nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FileName turns a customer name into a portable ASCII file name stem.
// Vietnamese diacritics are dropped ("Công ty Đại Phát" -> "Cong_ty_Dai_Phat").
func FileName(customer string) string {
	s, _, err := transform.String(stripMarks, customer)
	if err != nil {
		s = customer
	}
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)

	var b strings.Builder
	underscore := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "customer"
	}
	return out
}

// uniqueName returns stem, or stem with the lowest free "_N" suffix, such
// that no two names in used differ only by case.
func uniqueName(used map[string]bool, stem string) string {
	name := stem
	for n := 2; used[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s_%d", stem, n)
	}
	used[strings.ToLower(name)] = true
	return name
}
