package common

import "strings"

// ContainsInsensitive reports whether substr is within s, ignoring case.
func ContainsInsensitive(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MaskAccountNumber keeps the last four characters of an account number.
func MaskAccountNumber(accountNo string) string {
	if len(accountNo) <= 4 {
		return accountNo
	}
	return strings.Repeat("•", len(accountNo)-4) + accountNo[len(accountNo)-4:]
}
