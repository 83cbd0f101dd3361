package proxy

import (
	"regexp"
	"strings"
)

// cookiePropertyPattern finds "; <property>=<value>" (case-insensitive)
// segments in a Set-Cookie header value.
func cookiePropertyPattern(property string) *regexp.Regexp {
	return regexp.MustCompile(`(?i);\s*` + regexp.QuoteMeta(property) + `=([^;]+)`)
}

// rewriteCookieProperty rewrites a single cookie-attribute value (domain or
// path) inside a raw Set-Cookie header value according to config, per
// spec.md §4.8. An exact match in config wins over the "*" wildcard;
// absent either, the header is returned unchanged. A mapped empty string
// removes the entire "; property=value" clause.
func rewriteCookieProperty(headerValue string, config map[string]string, propertyName string) string {
	pattern := cookiePropertyPattern(propertyName)
	return pattern.ReplaceAllStringFunc(headerValue, func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		oldValue := strings.TrimSpace(sub[1])

		newValue, ok := config[oldValue]
		if !ok {
			newValue, ok = config["*"]
		}
		if !ok {
			return match
		}
		if newValue == "" {
			return ""
		}
		return "; " + propertyName + "=" + newValue
	})
}

// rewriteCookiePropertyList applies rewriteCookieProperty across each
// element of a list of Set-Cookie header values.
func rewriteCookiePropertyList(values []string, config map[string]string, propertyName string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = rewriteCookieProperty(v, config, propertyName)
	}
	return out
}

// rewriteCookies applies both domain and path rewriting (when enabled) to
// the Set-Cookie values of an upstream response.
func rewriteCookies(values []string, domainRewrite, pathRewrite CookieRewrite) []string {
	if domainRewrite.enabled() {
		values = rewriteCookiePropertyList(values, domainRewrite.Mapping, "domain")
	}
	if pathRewrite.enabled() {
		values = rewriteCookiePropertyList(values, pathRewrite.Mapping, "path")
	}
	return values
}
