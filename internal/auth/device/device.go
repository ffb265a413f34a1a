// Package device turns User-Agent headers into short labels for audit records
// and lock notifications.
package device

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"lockgate/pkg/platform/validation"
	"lockgate/pkg/requestcontext"
)

const (
	unknownDevice = "Unknown Device"
	maxLabelLen   = 96
)

// Describe returns "Browser on OS" (e.g. "Chrome on Intel Mac OS X 10_15_7").
// Mobile agents report the platform instead of the OS string.
func Describe(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	host := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		host = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if host == "" {
		host = "Unknown OS"
	}

	return strings.TrimSpace(validation.Truncate(browser+" on "+host, maxLabelLen))
}

// FromContext describes the User-Agent recorded by the client metadata middleware.
func FromContext(ctx context.Context) string {
	return Describe(requestcontext.UserAgent(ctx))
}
