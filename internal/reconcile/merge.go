package reconcile

import (
	"cmp"
	"slices"
	"strconv"
)

// Merge concatenates fetch results in the order given, synthesising
// "<source>-<raw id>" transaction ids. Records are never coalesced across
// sources. Fetch errors and malformed records become warnings.
func Merge(results []FetchResult) ([]Transaction, []Warning) {
	size := 0
	for _, res := range results {
		size += len(res.Records)
	}
	merged := make([]Transaction, 0, size)
	warnings := make([]Warning, 0)
	seen := make(map[string]struct{}, size)

	for _, res := range results {
		if res.Err != nil {
			warnings = append(warnings, warningFor(res.Err, res.Source, ""))
		}
		warnings = append(warnings, res.Malformed...)
		for i, tx := range res.Records {
			rawID := tx.SourceRecordID
			if rawID == "" {
				rawID = "#" + strconv.Itoa(i+1)
			}
			id := string(res.Source) + "-" + rawID
			if _, dup := seen[id]; dup {
				id += "~" + strconv.Itoa(i+1)
			}
			seen[id] = struct{}{}
			tx.ID = id
			merged = append(merged, tx)
		}
	}
	return merged, warnings
}

// SortChronological orders transactions by date, newest first. Equal dates
// fall back to source priority and then to the incoming order.
func SortChronological(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceType.priority(), b.SourceType.priority())
	})
}
