package api

// JSON Schema contracts of the public response payloads.

const rejectionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["error", "message", "retryAfterSeconds"],
	"properties": {
		"error": {"type": "string", "const": "RATE_LIMIT_EXCEEDED"},
		"message": {"type": "string", "minLength": 1},
		"retryAfterSeconds": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

const errorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["error", "message"],
	"properties": {
		"error": {"type": "string"},
		"message": {"type": "string"}
	},
	"additionalProperties": false
}`

const notificationListSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["notifications"],
	"properties": {
		"notifications": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type", "title", "message", "referenceId", "amount", "createdAt", "read"],
				"properties": {
					"id": {"type": "string"},
					"type": {"enum": [
						"BUDGET_WARNING", "BUDGET_EXCEEDED", "BUDGET_NEAR_END", "SAVINGS_DEADLINE",
						"SAVINGS_MILESTONE_50", "SAVINGS_MILESTONE_75", "SAVINGS_COMPLETED"
					]},
					"urgency": {"enum": ["LOW", "MEDIUM", "HIGH"]},
					"title": {"type": "string"},
					"message": {"type": "string"},
					"referenceId": {"type": "string"},
					"amount": {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"},
					"categoryName": {"type": "string"},
					"createdAt": {"type": "string", "format": "date-time"},
					"read": {"type": "boolean"},
					"readAt": {"type": "string", "format": "date-time"},
					"deleted": {"type": "boolean"}
				}
			}
		}
	},
	"additionalProperties": false
}`

const unreadCountSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["userId", "count"],
	"properties": {
		"userId": {"type": "string"},
		"count": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`
