package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dekont API",
        "description": "Monthly internship payment receipts: submission, approval, analysis and reconciliation.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and current user"},
        {"name": "Receipts", "description": "Receipt submission and approval workflow"},
        {"name": "Analysis", "description": "Automated receipt analysis"},
        {"name": "Reconciliation", "description": "Missing receipts, compliance and reminders"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user claims",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/files": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Upload receipt document",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/UploadedFile"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "415": {"description": "File type not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/files/download": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download receipt document via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts": {
            "get": {
                "tags": ["Receipts"],
                "summary": "List receipts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "internshipId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                    {"name": "month", "in": "query", "type": "integer"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Receipts"],
                "summary": "Submit receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReceiptRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Receipt"}},
                    "409": {"description": "Supplementary confirmation required, or document already attached to a receipt", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Period not allowed, or file_ref is not the caller's upload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{id}": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Get receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Receipt"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Receipts"],
                "summary": "Edit pending receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateReceiptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Receipt"}},
                    "403": {"description": "Receipt approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Receipts"],
                "summary": "Delete receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Receipt approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{id}/file-url": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Signed download URL for the receipt document",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FileURL"}}
                }
            }
        },
        "/receipts/{id}/approve": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Approve receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Receipt"}},
                    "409": {"description": "Receipt already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{id}/reject": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Reject receipt",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectReceiptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Receipt"}},
                    "400": {"description": "Missing reason", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{id}/analyze": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Analyze receipt document",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Receipt"}},
                    "415": {"description": "Document is not an image", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Analysis provider failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/analyze/batch": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Analyze up to 20 receipts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchAnalysisRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BatchSummary"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reconciliation/missing": {
            "get": {
                "tags": ["Reconciliation"],
                "summary": "Internships missing a receipt for the current period",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reconciliation/missing/export": {
            "get": {
                "tags": ["Reconciliation"],
                "summary": "Export missing receipts",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/reconciliation/reminders": {
            "post": {
                "tags": ["Reconciliation"],
                "summary": "Queue reminders for missing receipts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ReminderDispatchResult"}},
                    "503": {"description": "Reminders disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/internships/{id}/compliance": {
            "get": {
                "tags": ["Reconciliation"],
                "summary": "Compliance of one internship",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SubmitReceiptRequest": {
            "type": "object",
            "properties": {
                "internship_id": {"type": "string"},
                "month": {"type": "integer"},
                "year": {"type": "integer"},
                "amount": {"type": "number"},
                "file_ref": {"type": "string"},
                "description": {"type": "string"},
                "confirmed_supplementary": {"type": "boolean"}
            },
            "required": ["internship_id", "month", "year", "file_ref"]
        },
        "UpdateReceiptRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "description": {"type": "string"}
            }
        },
        "RejectReceiptRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "BatchAnalysisRequest": {
            "type": "object",
            "properties": {
                "receipt_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["receipt_ids"]
        },
        "UploadedFile": {
            "type": "object",
            "properties": {
                "file_ref": {"type": "string"},
                "mime_type": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "FileURL": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "Receipt": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "internship_id": {"type": "string"},
                "period_month": {"type": "integer"},
                "period_year": {"type": "integer"},
                "amount": {"type": "number"},
                "file_ref": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "rejection_reason": {"type": "string"},
                "uploaded_by": {"type": "string"},
                "supplementary_index": {"type": "integer"},
                "analysis": {"$ref": "#/definitions/AnalysisResult"}
            }
        },
        "AnalysisResult": {
            "type": "object",
            "properties": {
                "reliability": {"type": "number"},
                "recommendation": {"type": "string", "enum": ["approve", "reject", "manual_review"]},
                "security_flags": {"type": "array", "items": {"type": "object"}},
                "analyzed_at": {"type": "string"},
                "provider": {"type": "string"}
            }
        },
        "BatchSummary": {
            "type": "object",
            "properties": {
                "total_requested": {"type": "integer"},
                "successful": {"type": "integer"},
                "failed": {"type": "integer"},
                "skipped": {"type": "integer"},
                "average_reliability": {"type": "number"},
                "cancelled": {"type": "boolean"},
                "items": {"type": "array", "items": {"type": "object"}}
            }
        },
        "ReminderDispatchResult": {
            "type": "object",
            "properties": {
                "period": {"type": "string"},
                "urgency_tier": {"type": "string"},
                "queued": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
