package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Seating API",
        "description": "Generates and manages exam seating plans that keep candidates of the same course apart.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Exams and their course rosters"},
        {"name": "Classrooms", "description": "Exam rooms and seat grids"},
        {"name": "Seating Plans", "description": "Plan generation, manual edits and exports"},
        {"name": "Metrics", "description": "Operational metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "List exams",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Create exam with course rosters",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Get exam",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Exams"],
                "summary": "Delete exam",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/exams/{id}/courses": {
            "put": {
                "tags": ["Exams"],
                "summary": "Create or replace a course roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRosterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/classrooms": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "List classrooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classrooms"],
                "summary": "Create classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/classrooms/{id}": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "Get classroom",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classrooms"],
                "summary": "Update classroom",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Classrooms"],
                "summary": "Delete classroom",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/seating-plans": {
            "get": {
                "tags": ["Seating Plans"],
                "summary": "List seating plans",
                "parameters": [
                    {"name": "exam_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["draft", "finalized", "published"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/seating-plans/generate": {
            "post": {
                "tags": ["Seating Plans"],
                "summary": "Generate a seating plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateSeatingPlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "No students or invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient capacity; error.details carries required, available and shortfall", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/seating-plans/{id}": {
            "get": {
                "tags": ["Seating Plans"],
                "summary": "Get seating plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK; meta.cache_hit reports a cached read", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Seating Plans"],
                "summary": "Replace seat matrices",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSeatingPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Plan is published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Seating Plans"],
                "summary": "Delete seating plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/seating-plans/{id}/status": {
            "patch": {
                "tags": ["Seating Plans"],
                "summary": "Change plan status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSeatingPlanStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/seating-plans/{id}/swap": {
            "post": {
                "tags": ["Seating Plans"],
                "summary": "Swap the candidates of two seats",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SwapSeatsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK; data.swapped is false when nothing moved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Plan is published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/seating-plans/{id}/export": {
            "post": {
                "tags": ["Seating Plans"],
                "summary": "Render a CSV or PDF export",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportSeatingPlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/seating-plans/download/{token}": {
            "get": {
                "tags": ["Seating Plans"],
                "summary": "Download a rendered export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "Invalid token"},
                    "410": {"description": "Link expired"}
                }
            }
        },
        "/api/v1/metrics": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "StudentRequest": {
            "type": "object",
            "properties": {
                "roll_number": {"type": "string"},
                "name": {"type": "string"}
            },
            "required": ["roll_number"]
        },
        "CourseRosterRequest": {
            "type": "object",
            "properties": {
                "course_code": {"type": "string"},
                "course_title": {"type": "string"},
                "semester": {"type": "integer"},
                "branch": {"type": "string"},
                "students": {"type": "array", "items": {"$ref": "#/definitions/StudentRequest"}}
            },
            "required": ["course_code"]
        },
        "CreateExamRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "date": {"type": "string", "format": "date-time"},
                "courses": {"type": "array", "items": {"$ref": "#/definitions/CourseRosterRequest"}}
            },
            "required": ["name", "date"]
        },
        "SeatPosition": {
            "type": "object",
            "properties": {
                "row": {"type": "integer"},
                "column": {"type": "integer"}
            }
        },
        "ClassroomRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "building": {"type": "string"},
                "floor": {"type": "integer"},
                "capacity": {"type": "integer"},
                "rows": {"type": "integer"},
                "columns": {"type": "integer"},
                "unavailable_seats": {"type": "array", "items": {"$ref": "#/definitions/SeatPosition"}}
            },
            "required": ["name", "building", "capacity", "rows", "columns"]
        },
        "GenerateSeatingPlanRequest": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "classroom_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["exam_id", "classroom_ids"]
        },
        "UpdateSeatingPlanStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["draft", "finalized", "published"]}
            },
            "required": ["status"]
        },
        "SeatRef": {
            "type": "object",
            "properties": {
                "classroom_id": {"type": "string"},
                "row": {"type": "integer"},
                "column": {"type": "integer"}
            }
        },
        "SwapSeatsRequest": {
            "type": "object",
            "properties": {
                "from": {"$ref": "#/definitions/SeatRef"},
                "to": {"$ref": "#/definitions/SeatRef"}
            }
        },
        "UpdateSeatingPlanRequest": {
            "type": "object",
            "properties": {
                "classroom_allocations": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "classroom_id": {"type": "string"},
                            "seat_matrix": {"type": "array", "items": {"type": "array", "items": {"type": "object"}}}
                        }
                    }
                }
            },
            "required": ["classroom_allocations"]
        },
        "ExportSeatingPlanRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["format"]
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
