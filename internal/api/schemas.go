package api

// BroadcastRequestSchema is the contract of POST /internal/broadcast.
const BroadcastRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "title", "message"],
	"properties": {
		"type": {"enum": [
			"BUDGET_WARNING", "BUDGET_EXCEEDED", "BUDGET_NEAR_END", "SAVINGS_DEADLINE",
			"SAVINGS_MILESTONE_50", "SAVINGS_MILESTONE_75", "SAVINGS_COMPLETED"
		]},
		"urgency": {"enum": ["LOW", "MEDIUM", "HIGH"]},
		"title": {"type": "string", "minLength": 1, "maxLength": 120},
		"message": {"type": "string", "minLength": 1, "maxLength": 1000},
		"referenceId": {"type": "string"}
	},
	"additionalProperties": false
}`
