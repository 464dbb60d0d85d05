package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AppendContract validates c and returns a new table with c derived and
// appended. contract_id uniqueness is not enforced.
func AppendContract(table []Contract, c Contract) ([]Contract, error) {
	if err := c.Validate(); err != nil {
		return table, err
	}
	c.Derive()
	out := make([]Contract, len(table), len(table)+1)
	copy(out, table)
	return append(out, c), nil
}

// UpdateContract overwrites settled_value and payment_ledger on every record
// carrying contractID. It returns the new table and the number of records changed.
func UpdateContract(table []Contract, contractID string, settled float64, ledger string) ([]Contract, int, error) {
	if settled < 0 {
		return table, 0, ErrInvalidValue
	}
	return mutate(table, contractID, func(c *Contract) error {
		c.SettledValue = settled
		c.PaymentLedger = strings.TrimSpace(ledger)
		return nil
	})
}

// RecordPayment appends one ledger entry to every record carrying contractID.
func RecordPayment(table []Contract, contractID string, date Date, amount decimal.Decimal) ([]Contract, int, error) {
	if !amount.IsPositive() {
		return table, 0, ErrInvalidAmount
	}
	return mutate(table, contractID, func(c *Contract) error {
		ledger, err := AppendPayment(c.PaymentLedger, date, amount)
		if err != nil {
			return err
		}
		c.PaymentLedger = ledger
		return nil
	})
}

func mutate(table []Contract, contractID string, fn func(*Contract) error) ([]Contract, int, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return table, 0, ErrEmptyContractID
	}
	out := make([]Contract, len(table))
	copy(out, table)
	changed := 0
	for i := range out {
		if strings.TrimSpace(out[i].ContractID) != contractID {
			continue
		}
		if err := fn(&out[i]); err != nil {
			return table, 0, err
		}
		out[i].Derive()
		changed++
	}
	if changed == 0 {
		return table, 0, ErrContractNotFound
	}
	return out, changed, nil
}

// ContractIDs lists distinct ids in table order, for the update form.
func ContractIDs(table []Contract) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range table {
		id := strings.TrimSpace(c.ContractID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
