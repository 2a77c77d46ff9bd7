// Package docs registers the companion API's OpenAPI document with swag.
// Regenerate with: swag init -g cmd/opsync/main.go -o docs
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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in against the laundry backend",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Log out and clear every cache", "responses": {"204": {"description": "No Content"}}}
        },
        "/auth/refresh": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Renew the bearer credential",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "List cached tasks",
                "parameters": [{"type": "boolean", "description": "Reload from the backend first", "name": "refresh", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Task"}}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Assign a new task",
                "parameters": [
                    {"description": "Task to assign", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Task"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/tasks/{id}/status": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Change a task's status",
                "parameters": [
                    {"type": "string", "description": "Task id", "name": "id", "in": "path", "required": true},
                    {"description": "New status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.taskStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.updateResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.updateResponse"}}
                }
            }
        },
        "/tasks/{id}": {
            "delete": {
                "tags": ["tasks"],
                "summary": "Delete a task (admin)",
                "parameters": [{"type": "string", "description": "Task id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List cached orders",
                "parameters": [{"type": "boolean", "description": "Reload from the backend first", "name": "refresh", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.orderResponse"}}}}
            }
        },
        "/orders/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Search orders by number or customer name",
                "parameters": [{"type": "string", "description": "Case-insensitive substring", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.orderResponse"}}}}
            }
        },
        "/orders/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Order counts per status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.statsResponse"}}}
            }
        },
        "/orders/{id}/status": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Change an order's status",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true},
                    {"description": "New status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.orderStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.updateResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/orders/{id}/transitions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Reconciliation history of an order",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Transition"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/sync": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Pull tasks and orders, then reconcile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PassReport"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/reconcile": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Run one reconciliation pass over the cache",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.PassReport"}}}
            }
        }
    },
    "definitions": {
        "domain.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "assignedTo": {"type": "string"},
                "dueDate": {"type": "string"},
                "priority": {"type": "string"},
                "status": {"type": "string"},
                "orderId": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "domain.Transition": {
            "type": "object",
            "properties": {
                "pass_id": {"type": "string"},
                "order_id": {"type": "string"},
                "from": {"type": "string"},
                "to": {"type": "string"},
                "phase": {"type": "string"},
                "error": {"type": "string"},
                "at": {"type": "string"}
            }
        },
        "handler.createTaskRequest": {
            "type": "object",
            "required": ["assignedTo", "title"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "assignedTo": {"type": "string"},
                "dueDate": {"type": "string"},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "orderId": {"type": "string"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.orderResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "orderNumber": {"type": "string"},
                "customerName": {"type": "string"},
                "status": {"type": "string"},
                "totalAmount": {"type": "number"},
                "createdAt": {"type": "string"}
            }
        },
        "handler.orderStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["pending", "processing", "completed", "in-transit", "cancelled"]}}
        },
        "handler.sessionResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/handler.userResponse"},
                "expires_at": {"type": "string"}
            }
        },
        "handler.statsResponse": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "by_status": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "handler.taskStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["pending", "in-progress", "completed"]}}
        },
        "handler.updateResponse": {
            "type": "object",
            "properties": {
                "phase": {"type": "string"},
                "id": {"type": "string"},
                "from": {"type": "string"},
                "to": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handler.userResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "service.PassReport": {
            "type": "object",
            "properties": {
                "pass_id": {"type": "string"},
                "evaluated": {"type": "integer"},
                "transitions": {"type": "array", "items": {"$ref": "#/definitions/domain.Transition"}},
                "skipped": {"type": "array", "items": {"type": "string"}},
                "aborted": {"type": "boolean"},
                "partial": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8090",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "opsync companion API",
	Description:      "Local API exposing the laundry order/task synchronisation core to the UI.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
