package proxy

import "quiz-recommender/internal/common/validation"

var searchSchema = validation.MustCompile("search-request", `{
	"type": "object",
	"properties": {
		"term":         {"type": "string", "maxLength": 200},
		"categories":   {"type": "string", "maxLength": 500},
		"location":     {"type": "string", "maxLength": 200},
		"latitude":     {"type": ["number", "null"], "minimum": -90, "maximum": 90},
		"longitude":    {"type": ["number", "null"], "minimum": -180, "maximum": 180},
		"radius":       {"type": "integer", "minimum": 0},
		"price":        {"type": "string", "pattern": "^([1-4](,[1-4])*)?$"},
		"sort_by":      {"type": "string", "enum": ["", "best_match", "rating", "review_count", "distance"]},
		"open_now":     {"type": "boolean"},
		"transactions": {"type": "array", "items": {"type": "string"}},
		"limit":        {"type": "integer", "minimum": 0},
		"offset":       {"type": "integer", "minimum": 0}
	}
}`)

var detailsSchema = validation.MustCompile("details-request", `{
	"type": "object",
	"properties": {
		"id": {"type": "string"}
	}
}`)
