package auth

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device describes the client a session was opened from
type Device struct {
	Agent    string
	Platform string
}

// ParseDevice combines the client supplied Agent/Platform headers with what
// the User-Agent string reveals.
func ParseDevice(userAgent, agentHeader, platformHeader string) Device {
	ua := useragent.New(userAgent)

	browser, version := ua.Browser()
	agent := joinNonEmpty("/", agentHeader, strings.TrimSpace(browser+" "+version))

	platform := joinNonEmpty("/", platformHeader, joinNonEmpty(" ", ua.Platform(), ua.OS()))

	return Device{Agent: agent, Platform: platform}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
