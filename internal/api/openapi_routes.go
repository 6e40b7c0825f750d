package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// openAPISpecPath OpenAPI 文档路径，相对于工作目录
const openAPISpecPath = "docs/api/openapi.yaml"

// registerOpenAPIRoutes 提供 /openapi 与 /docs/redoc
func registerOpenAPIRoutes(engine *gin.Engine) {
	engine.GET("/openapi", serveOpenAPI)
	engine.GET("/openapi.yaml", serveOpenAPI)
	engine.GET("/docs/redoc", serveRedoc)
}

func serveOpenAPI(c *gin.Context) {
	if _, err := os.Stat(openAPISpecPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "OpenAPI 文档不存在"})
		return
	}
	c.Header("Content-Type", "application/yaml; charset=utf-8")
	c.File(openAPISpecPath)
}

func serveRedoc(c *gin.Context) {
	// 优先使用本地 redoc 资源，离线可用；否则回退到 CDN
	scriptSrc := "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"
	if _, err := os.Stat("static/vendors/redoc/redoc.standalone.js"); err == nil {
		scriptSrc = "/static/vendors/redoc/redoc.standalone.js"
	}

	html := `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Figurine Hub API - Redoc</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc spec-url="/openapi" expand-responses="200,201"></redoc>
    <script src="` + scriptSrc + `"></script>
  </body>
</html>`
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
