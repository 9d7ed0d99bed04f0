package extract

import (
	"regexp"
	"strings"
)

// 頁碼與頁首頁尾
var pageArtifacts = []*regexp.Regexp{
	// "Página 3", "Page 1 of 5"
	regexp.MustCompile(`(?i)^(?:p[aá]gina|page|p[aá]g\.?)\s*\d+(?:\s*(?:de|of|/)\s*\d+)?$`),
	// "1/5"
	regexp.MustCompile(`^\d+\s*/\s*\d+$`),
	// "12", "- 3 -"
	regexp.MustCompile(`^[-–—]?\s*\d{1,3}\s*[-–—]?$`),
}

var horizontalSpace = regexp.MustCompile(`[ \t]{2,}`)

// CleanPageArtifacts removes form feeds and page numbering left by PDF and OCR
// tools and trims layout padding.
func CleanPageArtifacts(text string) string {
	text = strings.ReplaceAll(text, "\f", "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isPageArtifact(trimmed) {
			continue
		}
		out = append(out, horizontalSpace.ReplaceAllString(trimmed, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isPageArtifact(line string) bool {
	if line == "" {
		return false
	}
	for _, re := range pageArtifacts {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
