package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the OpenAPI endpoints for the listings API.
// - GET /swagger/index.html  -> Swagger UI page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>thriftkids-api - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "thriftkids-api", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Listing": {
        "type": "object",
        "properties": {
          "id": {"type":"string"},
          "title": {"type":"string"},
          "size": {"type":"string"},
          "age_group": {"type":"string"},
          "condition": {"type":"string"},
          "notes": {"type":"string"},
          "description": {"type":"string"},
          "image_url": {"type":"string"},
          "created_at": {"type":"string", "format":"date-time"},
          "seeded": {"type":"boolean"}
        }
      },
      "Error": { "type": "object", "properties": { "error": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "OK" } } } },
    "/api/listings": {
      "get": {
        "summary": "List listings, newest first",
        "responses": { "200": { "description": "listings (possibly empty)", "content": { "application/json": { "schema": {"type":"array","items":{"$ref":"#/components/schemas/Listing"}}}}}}
      },
      "post": {
        "summary": "Create a listing",
        "requestBody": { "required": true, "content": { "multipart/form-data": { "schema": {"type":"object","required":["title","image"],"properties":{"title":{"type":"string"},"image":{"type":"string","format":"binary"},"size":{"type":"string"},"age_group":{"type":"string"},"condition":{"type":"string"},"notes":{"type":"string"},"description":{"type":"string"}}}}}},
        "responses": {
          "201": { "description": "created", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Listing"}}}},
          "400": { "description": "title and image required", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Error"}}}},
          "500": { "description": "image upload failed", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Error"}}}}
        }
      }
    },
    "/api/test-ai": {
      "get": { "summary": "Send a sample prompt to the text model", "responses": { "200": { "description": "model reply" }, "400": { "description": "credential not configured" }, "500": { "description": "model call failed" } } }
    },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "record store unavailable" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "exposition" } } } }
  }
}`
