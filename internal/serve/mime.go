package serve

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultMIMETypes are the content-type overrides applied by default.
var DefaultMIMETypes = map[string]string{
	".wasm": "application/wasm",
}

// mimeOverride sets Content-Type for paths whose extension is in types.
// http.ServeContent keeps a Content-Type that is already set.
func mimeOverride(types map[string]string) gin.HandlerFunc {
	normalized := make(map[string]string, len(types))
	for ext, ct := range types {
		normalized[strings.ToLower(ext)] = ct
	}

	return func(c *gin.Context) {
		ext := strings.ToLower(path.Ext(c.Request.URL.Path))
		if ct, ok := normalized[ext]; ok {
			c.Header("Content-Type", ct)
		}

		c.Next()
	}
}
