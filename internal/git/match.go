package git

import (
	"strconv"
	"strings"
)

// issuePrefixes are the words allowed directly before an issue number in a
// branch name, as in "issue-12" or "fix_12".
var issuePrefixes = map[string]bool{
	"issue":   true,
	"issues":  true,
	"gh":      true,
	"feat":    true,
	"feature": true,
	"fix":     true,
	"bugfix":  true,
	"hotfix":  true,
	"chore":   true,
}

// MatchesIssueNumber reports whether branch refers to issue n. The number
// must stand alone (not part of a larger number) and sit at the start of
// the branch, right after '/', or after a '-' or '_' that itself follows
// either a boundary or a recognized prefix word. "issue-12", "feat/issue-12-x"
// and "12-login" match 12; "issue-123", "tissue-12" and "issue12" do not.
func MatchesIssueNumber(branch string, n int) bool {
	if n < 0 || branch == "" {
		return false
	}
	num := strconv.Itoa(n)

	for from := 0; from < len(branch); {
		i := strings.Index(branch[from:], num)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(num)
		from = start + 1

		if start > 0 && isDigit(branch[start-1]) {
			continue
		}
		if end < len(branch) && isDigit(branch[end]) {
			continue
		}
		if precededByBoundary(branch, start) {
			return true
		}
	}
	return false
}

func precededByBoundary(branch string, start int) bool {
	if start == 0 || branch[start-1] == '/' {
		return true
	}

	sep := start - 1
	if branch[sep] != '-' && branch[sep] != '_' {
		return false
	}

	wordEnd := sep
	wordStart := wordEnd
	for wordStart > 0 && isLetter(branch[wordStart-1]) {
		wordStart--
	}
	if wordStart == wordEnd {
		// "-12" with nothing before the separator but another boundary
		return sep == 0 || isSeparator(branch[sep-1])
	}
	if wordStart > 0 && !isSeparator(branch[wordStart-1]) {
		return false
	}
	return issuePrefixes[strings.ToLower(branch[wordStart:wordEnd])]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isSeparator(c byte) bool { return c == '/' || c == '-' || c == '_' }
