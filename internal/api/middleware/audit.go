package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

// JsonApiPath is the RPC endpoint; its audit action is the RPC method name.
const JsonApiPath = "/v1/api"

const maxAuditBody = 64 << 10

// Methods that carry credentials are skipped here; the JSON API handler records them as account
// events without their arguments.
var credentialMethods = map[string]struct{}{
	"register":       {},
	"login":          {},
	"refreshToken":   {},
	"changePassword": {},
}

var unauditedPaths = map[string]struct{}{
	"/v1/ping": {},
	"/metrics": {},
}

// AuditMiddleware records every state-changing request through audit. It runs after the
// handler so the status and the authenticated user are known. Recording never fails a request.
func AuditMiddleware(audit services.IAuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if _, skip := unauditedPaths[path]; skip {
			c.Next()
			return
		}

		body := peekBody(c)
		action, metadata := describeRequest(c, path, body)
		if action == "" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		principal, _ := CurrentPrincipal(c)
		audit.Record(c.Request.Context(), models.AuditEntry{
			UserID:     services.AuditUserID(principal),
			Action:     action,
			Method:     c.Request.Method,
			Path:       path,
			Status:     c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			IP:         c.ClientIP(),
			Metadata:   metadata,
		})
	}
}

// peekBody reads up to maxAuditBody bytes and puts them back in front of the unread rest.
// Returns nil when the body is larger than that.
func peekBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
	c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), c.Request.Body), Closer: c.Request.Body}
	if err != nil || len(head) > maxAuditBody {
		return nil
	}
	return head
}

type readCloser struct {
	io.Reader
	io.Closer
}

// describeRequest names the action and extracts metadata. An empty action means the request
// must not be audited.
func describeRequest(c *gin.Context, path string, body []byte) (string, map[string]any) {
	if path == JsonApiPath {
		var rpc struct {
			Method    string `json:"method"`
			Arguments any    `json:"arguments"`
		}
		if err := json.Unmarshal(body, &rpc); err != nil || rpc.Method == "" {
			return "invalidRequest", nil
		}
		if _, secret := credentialMethods[rpc.Method]; secret {
			return "", nil
		}
		if rpc.Arguments == nil {
			return rpc.Method, nil
		}
		return rpc.Method, map[string]any{"arguments": rpc.Arguments}
	}

	route := c.FullPath()
	if route == "" {
		route = path
	}
	var metadata map[string]any
	if len(body) > 0 {
		_ = json.Unmarshal(body, &metadata)
	}
	if id := c.Param("id"); id != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["id"] = id
	}
	return c.Request.Method + " " + route, metadata
}
