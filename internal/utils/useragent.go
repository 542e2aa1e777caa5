package utils

import (
	ua "github.com/mssola/user_agent"
)

// DeviceInfo holds parsed information from a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, desktop
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	IsBot      bool   `json:"is_bot"`
	Raw        string `json:"raw"`
}

// ParseUserAgent parses a User-Agent string and extracts device information
// for the payment audit trail.
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{
			DeviceType: "unknown",
			OS:         "Unknown",
			Browser:    "Unknown",
			Raw:        userAgent,
		}
	}

	parser := ua.New(userAgent)

	browser, version := parser.Browser()
	if browser == "" {
		browser = "Unknown"
	}

	info := DeviceInfo{
		Raw:        userAgent,
		IsBot:      parser.Bot(),
		OS:         parser.OS(),
		Browser:    browser,
		BrowserVer: version,
		DeviceType: "desktop",
	}

	if parser.Mobile() {
		info.DeviceType = "mobile"
	}

	return info
}

// ToMap converts device info to a generic map for JSONB storage
func (d DeviceInfo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"device_type": d.DeviceType,
		"os":          d.OS,
		"browser":     d.Browser,
		"browser_ver": d.BrowserVer,
		"is_bot":      d.IsBot,
	}
}
