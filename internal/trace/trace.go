// Package trace dumps each run's raw N26 fetch to a dated CSV so there is an
// audit record of what the bank returned. The dump happens before filtering,
// deliberately; nothing ever reads these files back.
package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/n26-ynab/bridge/internal/model"
)

// Header is the CSV header row of a trace file.
var Header = []string{"id", "type", "amount", "currency", "visibleTS", "merchantName", "partnerName", "referenceText"}

const timestampFormat = "2006-01-02T15:04:05"

// Filename returns the trace file name for a run, like
// 2023-11-14T22:13:20_personal.csv.
func Filename(now time.Time, accountName string) string {
	return now.Format(timestampFormat) + "_" + accountName + ".csv"
}

// MarshalTransaction converts one source transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	return []string{
		t.ID,
		t.Type,
		t.Amount.String(),
		t.CurrencyCode,
		strconv.FormatInt(t.VisibleTS, 10),
		t.MerchantName,
		t.PartnerName,
		t.ReferenceText,
	}
}

// Write stores txns under dir using the run timestamp and account name,
// creating dir if needed. Returns the path of the written file.
func Write(dir, accountName string, now time.Time, txns []model.Transaction) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(dir, Filename(now, accountName))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating trace file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return "", fmt.Errorf("writing transaction %d: %w", i, err)
		}
	}

	if err := cw.Error(); err != nil {
		return "", err
	}
	return path, nil
}
