package singbox

import (
	"fmt"
	"strings"
)

// Platform is the closed set of client platforms a document can target.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWindows Platform = "windows"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{PlatformIOS, PlatformAndroid, PlatformWindows}
}

// ParsePlatform normalizes and validates a platform tag.
func ParsePlatform(value string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(value))); p {
	case PlatformIOS, PlatformAndroid, PlatformWindows:
		return p, nil
	default:
		return "", &UnsupportedPlatformError{Value: value}
	}
}

// UnsupportedPlatformError is the only failure mode of document synthesis.
type UnsupportedPlatformError struct {
	Value string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.Value)
}
