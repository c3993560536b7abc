// Package pipeline holds helpers for wiring database writes into pipeline
// node graphs.
package pipeline

// VerifyWriteStatus folds the success flags of upstream write stages into a
// single gate value. It is true only when every flag is true; an empty slice
// verifies trivially. Downstream stages depend on the result to order
// themselves after the writes they read from.
func VerifyWriteStatus(statuses []bool) bool {
	for _, ok := range statuses {
		if !ok {
			return false
		}
	}
	return true
}
