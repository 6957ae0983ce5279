package ledgerclient

// Project returns the preview balance shown before submission confirms. The
// result is informational only and must be reconciled against the server's
// balance after the adjustment applies.
func Project(currentBalance, pendingDelta int) int {
	return currentBalance + pendingDelta
}
