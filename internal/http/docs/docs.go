// Package docs registers the OpenAPI document served by Swagger UI.
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
    "basePath": "/",
    "paths": {
        "/webhook": {
            "post": {
                "description": "Accepts one event object or an array of events from the WhatsApp bridge and queues message events for the bot.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "Receive bridge events",
                "operationId": "receiveWebhook",
                "parameters": [
                    {"type": "string", "description": "Webhook shared secret", "name": "X-Api-Key", "in": "header"},
                    {"type": "string", "description": "Delivery id used for de-duplication", "name": "X-Webhook-Request-Id", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "no message events", "schema": {"$ref": "#/definitions/handlers.WebhookAck"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.WebhookAck"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "{{.BasePath}}/status": {
            "get": {
                "description": "Whitelist and admin counts, chats with the bot enabled, and the active command prefix.",
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Bot status",
                "operationId": "getStatus",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatusResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "operationId": "health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "unauthorized"},
                "message": {"type": "string", "example": "invalid webhook secret"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.StatusResponse": {
            "type": "object",
            "properties": {
                "admins": {"type": "integer", "example": 2},
                "enabled_chats": {"type": "integer", "example": 4},
                "prefix": {"type": "string", "example": "."},
                "session": {"type": "string", "example": "default"},
                "whitelisted": {"type": "integer", "example": 12}
            }
        },
        "handlers.WebhookAck": {
            "type": "object",
            "properties": {
                "ignored": {"type": "integer", "example": 0},
                "messages": {"type": "integer", "example": 1},
                "status": {"type": "string", "example": "queued"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "whisper-zap API",
	Description:      "Webhook receiver and status endpoints of the WhatsApp transcription bot.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
