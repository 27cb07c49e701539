// Package docs registers the fleet workflow API description with swag.
// Regenerate with: swag init -g cmd/fleet-api/main.go -o cmd/fleet-api/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {"get": {"tags": ["Health"], "summary": "Service health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/catalogue": {"get": {"tags": ["Workflows"], "summary": "Authoring catalogue", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/workflows": {
            "get": {"tags": ["Workflows"], "summary": "List workflows", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}},
            "post": {"tags": ["Workflows"], "summary": "Create a new workflow", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"name": "workflow", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/workflows/{id}": {
            "get": {"tags": ["Workflows"], "summary": "Get workflow by ID", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"tags": ["Workflows"], "summary": "Replace a workflow definition", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}, {"name": "workflow", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["Workflows"], "summary": "Delete a workflow", "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/workflows/{id}/executions": {"get": {"tags": ["Executions"], "summary": "List executions of a workflow", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/workflows/{id}/history": {"get": {"tags": ["Workflows"], "summary": "Change history of a workflow", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/executions/{id}": {"get": {"tags": ["Executions"], "summary": "Get execution by ID", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/alerts": {"get": {"tags": ["Alerts"], "summary": "List alerts raised against an entity", "produces": ["application/json"], "parameters": [{"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true}, {"type": "string", "name": "entity_type", "in": "query", "required": true}, {"type": "string", "name": "entity_id", "in": "query", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/deliveries": {"get": {"tags": ["Deliveries"], "summary": "List queued event deliveries", "produces": ["application/json"], "parameters": [{"type": "string", "name": "status", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/deliveries/stats": {"get": {"tags": ["Deliveries"], "summary": "Event delivery queue statistics", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/deliveries/{id}": {"delete": {"tags": ["Deliveries"], "summary": "Cancel a pending or retrying event delivery", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "409": {"description": "Conflict"}}}},
        "/events": {"post": {"tags": ["Ingest"], "summary": "Submit a domain event", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"name": "event", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}}}},
        "/telemetry": {"post": {"tags": ["Ingest"], "summary": "Record a position sample", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"name": "position", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Fleet Workflow API",
	Description:      "Tenant workflow rules evaluated against fleet telematics events",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
