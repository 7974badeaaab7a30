package layout

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// sanitizeLabel strips unsafe markup from a LABEL value. Values that only
// differ in entity encoding are left as written.
func sanitizeLabel(raw string) (string, bool) {
	cleaned := strings.TrimSpace(labelSanitizer().Sanitize(raw))
	if html.UnescapeString(cleaned) == html.UnescapeString(strings.TrimSpace(raw)) {
		return raw, false
	}
	return cleaned, true
}

func labelSanitizer() *bluemonday.Policy {
	labelPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("style").OnElements("span", "div", "p", "font")
		policy.AllowElements("font")
		policy.AllowAttrs("color", "size").OnElements("font")
		labelPolicy = policy
	})
	return labelPolicy
}
