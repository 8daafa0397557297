package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Tipjar API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/swagger/spec',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`

// SwaggerHandler serves the OpenAPI document and a Swagger UI page for it.
type SwaggerHandler struct {
	spec []byte
}

// NewSwaggerHandler takes the OpenAPI YAML; nil spec makes /swagger/spec 404.
func NewSwaggerHandler(spec []byte) *SwaggerHandler {
	return &SwaggerHandler{spec: spec}
}

func (h *SwaggerHandler) Spec(c *gin.Context) {
	if h.spec == nil {
		c.String(http.StatusNotFound, "OpenAPI spec not loaded")
		return
	}
	c.Data(http.StatusOK, "application/x-yaml", h.spec)
}

func (h *SwaggerHandler) UI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerUIPage))
}
