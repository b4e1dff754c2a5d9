package middleware

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/featureboard/backend/internal/services"
	"github.com/gin-gonic/gin"
)

const maxAuditBody = 2000

// auditBody masks secrets before truncating, so a value cut at the limit is
// never stored in part.
func auditBody(raw string) string {
	body := maskSensitiveFields(raw)
	if len(body) > maxAuditBody {
		body = body[:maxAuditBody] + "...[truncated]"
	}
	return body
}

// AuditLog records write operations (POST/PUT/PATCH/DELETE) to audit_logs.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = auditBody(string(bodyBytes))
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *string
		if id := GetUserID(c); id != "" {
			uid = &id
		}

		level := services.LogInfo
		if status >= http.StatusBadRequest {
			level = services.LogWarning
		}
		level(module, action, formatAuditMessage(GetEmail(c), method, c.Request.URL.Path, status),
			uid, c.ClientIP(), c.Request.UserAgent(), map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   bodySnippet,
			})
	}
}

// parseRouteInfo derives module and action from a gin route pattern, e.g.
// "/api/admin/features/:id" + DELETE gives ("features", "delete") and
// "/api/features/:id/status" + PATCH gives ("features", "update-status").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	path = strings.TrimPrefix(path, "admin/")

	parts := strings.Split(path, "/")
	module = parts[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}

	if last := parts[len(parts)-1]; len(parts) > 1 && !strings.HasPrefix(last, ":") {
		action += "-" + last
	}
	return module, action
}

func formatAuditMessage(email, method, path string, status int) string {
	if email == "" {
		email = "anonymous"
	}
	outcome := "OK"
	if status < 200 || status >= 300 {
		outcome = "Failed"
	}
	return "[Audit] " + email + " " + method + " " + path + " -> " + outcome
}

var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|old_password|new_password|secret|token|api_key|access_token)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// maskSensitiveFields replaces sensitive JSON string values with ***.
func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllString(body, `$1"***"`)
}
