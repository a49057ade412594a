package notify

import "strconv"

// Badge formats an unread count for display: empty for zero, capped at
// "99+".
func Badge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}
