package registry

const (
	CategoryRecommendation = "recommendation"
	WorkflowRecommendation = "restaurant-recommendation"
)

// Default describes the recommendation workers shipped in this module.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:                   "map-quiz-answers",
				DisplayName:          "Map Quiz Answers",
				Description:          "Turns quiz answers into a search intent and the query signatures it expands to",
				Category:             CategoryRecommendation,
				Version:              "1.0.0",
				TaskType:             "recommend.answers.map",
				ImplementationStatus: "completed",
				InputSchema: object(map[string]interface{}{
					"answers":  array("object"),
					"controls": prop("object"),
				}, "answers"),
				OutputSchema: object(map[string]interface{}{
					"searchIntent":    prop("object"),
					"querySignatures": array("string"),
					"searchLocation":  prop("string"),
					"searchRadius":    prop("integer"),
					"searchPrice":     prop("string"),
				}),
				ErrorCodes: []string{"INVALID_INPUT"},
				Timeout:    "5s",
				Retries:    3,
				Workflows:  []string{WorkflowRecommendation},
				Tags:       []string{"quiz", "mapping"},
			},
			{
				ID:                   "rank-restaurants",
				DisplayName:          "Rank Restaurants",
				Description:          "Filters a merged result set and orders it by the effective sort mode",
				Category:             CategoryRecommendation,
				Version:              "1.0.0",
				TaskType:             "recommend.restaurants.rank",
				ImplementationStatus: "completed",
				InputSchema: object(map[string]interface{}{
					"businesses":   array("object"),
					"searchIntent": prop("object"),
					"controls":     prop("object"),
					"searchPhase":  prop("string"),
					"rollAgain":    prop("boolean"),
					"rollSeed":     prop("integer"),
				}, "businesses"),
				OutputSchema: object(map[string]interface{}{
					"rankedResults": array("object"),
					"resultCount":   prop("integer"),
					"sortMode":      prop("string"),
					"droppedCount":  prop("integer"),
					"topPickId":     prop("string"),
					"topPickName":   prop("string"),
				}),
				ErrorCodes: []string{"INVALID_INPUT"},
				Timeout:    "5s",
				Retries:    3,
				Workflows:  []string{WorkflowRecommendation},
				Tags:       []string{"filter", "ranking"},
			},
			{
				ID:                   "search-restaurants",
				DisplayName:          "Search Restaurants",
				Description:          "Fans out query variants, relaxes on empty results and falls back to the last cached results",
				Category:             CategoryRecommendation,
				Version:              "1.0.0",
				TaskType:             "recommend.restaurants.search",
				ImplementationStatus: "completed",
				InputSchema: object(map[string]interface{}{
					"sessionId":    prop("string"),
					"searchIntent": prop("object"),
					"controls":     prop("object"),
				}, "searchIntent"),
				OutputSchema: object(map[string]interface{}{
					"searchPhase":    prop("string"),
					"businesses":     array("object"),
					"businessCount":  prop("integer"),
					"resultsStale":   prop("boolean"),
					"cachedAt":       prop("string"),
					"retryAvailable": prop("boolean"),
					"searchMessage":  prop("string"),
				}),
				ErrorCodes: []string{"INVALID_INPUT", "CONFIGURATION_ERROR", "TRANSIENT_NETWORK_ERROR"},
				Timeout:    "30s",
				Retries:    3,
				Workflows:  []string{WorkflowRecommendation},
				Tags:       []string{"search", "fanout", "cache"},
			},
		},
	}
}

func prop(typ string) map[string]interface{} {
	return map[string]interface{}{"type": typ}
}

func array(itemType string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": prop(itemType)}
}

func object(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
