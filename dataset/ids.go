package dataset

import "fmt"

// PaddedID formats a 1-based sequence number as prefix plus a zero-padded
// number of at least width digits.
func PaddedID(prefix string, n, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// SequentialIDs returns PaddedID(prefix, 1..n, width).
func SequentialIDs(prefix string, n, width int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = PaddedID(prefix, i+1, width)
	}
	return ids
}
