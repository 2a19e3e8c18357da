package api

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIVersion represents a specific API version
type APIVersion string

// Supported API versions
const (
	APIVersionUnspecified APIVersion = ""
	APIVersionV1          APIVersion = "v1"
)

// VersioningConfig holds configuration for API versioning
type VersioningConfig struct {
	DefaultVersion    APIVersion `mapstructure:"default_version"`
	AcceptHeaderCheck bool       `mapstructure:"accept_header_check"`
	URLVersioning     bool       `mapstructure:"url_versioning"`
}

// acceptHeaderRegex extracts a version from an Accept header, e.g.
// application/vnd.claimsearch.v1+json
var acceptHeaderRegex = regexp.MustCompile(`application/vnd\.claimsearch\.v(\d+)(\+\w+)?`)

// VersioningMiddleware tags the request context and response with the
// resolved API version, so handlers and clients agree on it even though
// routes themselves aren't split per-version.
func VersioningMiddleware(config VersioningConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var version APIVersion

		if config.AcceptHeaderCheck {
			accept := c.GetHeader("Accept")
			if accept != "" {
				matches := acceptHeaderRegex.FindStringSubmatch(accept)
				if len(matches) >= 2 {
					version = APIVersion("v" + matches[1])
				}
			}
		}

		if config.URLVersioning && version == APIVersionUnspecified {
			path := c.Request.URL.Path
			if strings.HasPrefix(path, "/api/") {
				parts := strings.Split(path, "/")
				if len(parts) >= 3 && strings.HasPrefix(parts[2], "v") {
					version = APIVersion(parts[2])
				}
			}
		}

		if version == APIVersionUnspecified {
			version = config.DefaultVersion
		}

		c.Set("api_version", version)
		c.Header("X-API-Version", string(version))
		c.Next()
	}
}

// GetAPIVersion returns the API version resolved for this request.
func GetAPIVersion(c *gin.Context) APIVersion {
	version, exists := c.Get("api_version")
	if !exists {
		return APIVersionV1
	}
	return version.(APIVersion)
}
