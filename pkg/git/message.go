package git

import "strings"

// FormatMessage builds the commit message of an archived version:
//
//	Version <id>
//
//	<ledger body>
//
// The summary is for humans; the body is parsed back by Lookup.
func FormatMessage(versionID, ledgerBody string) string {
	var sb strings.Builder
	sb.WriteString("Version ")
	sb.WriteString(versionID)
	sb.WriteString("\n\n")
	sb.WriteString(ledgerBody)
	return sb.String()
}

// SplitMessage separates the summary from the body at the first blank line.
// ok is false when the message has no body.
func SplitMessage(msg string) (summary, body string, ok bool) {
	summary, body, ok = strings.Cut(msg, "\n\n")
	return summary, body, ok
}
