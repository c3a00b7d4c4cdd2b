package handlers

import (
	"html/template"
	"net/http"
)

// OpenAPIPath is where the OpenAPI document is served
const OpenAPIPath = "/api/docs/openapi.json"

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css">
    <style>
        body { margin: 0; padding: 0; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: {{.SpecURL}},
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis]
            });
        };
    </script>
</body>
</html>`))

type swaggerData struct {
	Title   string
	Version string
	SpecURL string
}

// SwaggerUI serves the Swagger UI page for the analysis API
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := swaggerPage.Execute(w, swaggerData{
		Title:   "Air Quality Missing-Data API",
		Version: "5.10.0",
		SpecURL: OpenAPIPath,
	}); err != nil {
		http.Error(w, "failed to render documentation", http.StatusInternalServerError)
	}
}
