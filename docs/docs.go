// Package docs registers the Watchtower OpenAPI document with swag.
//
// Regenerate with: swag init -g cmd/server/docs.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "GitHub Repository",
            "url": "https://github.com/tomtom215/watchtower"
        },
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Core"],
                "summary": "Get system health status",
                "responses": {"200": {"description": "Health status retrieved successfully"}}
            }
        },
        "/lockdown/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Lockdown"],
                "summary": "Get lockdown status",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/lockdown/initiate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Lockdown"],
                "summary": "Initiate a lockdown",
                "parameters": [
                    {"description": "Lockdown parameters", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/api.InitiateLockdownRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failed"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Forbidden"},
                    "409": {"description": "Lockdown already active"}
                }
            }
        },
        "/lockdown/lift": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Lockdown"],
                "summary": "Lift the active lockdown",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "No lockdown is active"}
                }
            }
        },
        "/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Logs"],
                "summary": "List log records",
                "parameters": [
                    {"type": "string", "name": "level", "in": "query"},
                    {"type": "string", "name": "module", "in": "query"},
                    {"type": "string", "name": "userId", "in": "query"},
                    {"type": "string", "name": "startDate", "in": "query"},
                    {"type": "string", "name": "endDate", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid parameters"}}
            }
        },
        "/logs/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Logs"],
                "summary": "Log statistics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/logs/search": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Logs"],
                "summary": "Search log records",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}}
            }
        },
        "/logs/export": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["text/csv", "application/json"],
                "tags": ["Logs"],
                "summary": "Export log records",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Revoke a session",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "403": {"description": "Token belongs to another user"}}
            }
        },
        "/auth/revoke-all/{userID}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Revoke every session of a user",
                "parameters": [{"type": "string", "name": "userID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}
            }
        }
    },
    "definitions": {
        "api.InitiateLockdownRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"},
                "estimatedDurationMs": {"type": "integer"},
                "affectedServices": {"type": "array", "items": {"type": "string"}},
                "allowAdminAccess": {"type": "boolean"},
                "customMessage": {"type": "string"},
                "revokeUsers": {"type": "array", "items": {"type": "string"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Watchtower API",
	Description:      "Security and operational control plane: lockdown, session tokens and log history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
