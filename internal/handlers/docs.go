package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func jsonContent(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func nullableNumber() object {
	return object{"type": "number", "nullable": true}
}

var (
	analysisErrorSchema = object{
		"type":     "object",
		"nullable": true,
		"properties": object{
			"variable": object{"type": "string"},
			"stage":    object{"type": "string", "enum": []string{"classify", "validate", "impute"}},
			"message":  object{"type": "string"},
		},
	}

	columnCountSchema = object{
		"type": "object",
		"properties": object{
			"column": object{"type": "string"},
			"count":  object{"type": "integer"},
		},
	}

	mechanismSchema = object{
		"type": "object",
		"properties": object{
			"column":              object{"type": "string"},
			"missing_fraction":    nullableNumber(),
			"correlations":        object{"type": "object", "additionalProperties": nullableNumber()},
			"max_abs_correlation": nullableNumber(),
			"label":               object{"type": "string", "enum": []string{"no data", "no missing", "MCAR", "MAR", "MNAR"}},
			"error":               analysisErrorSchema,
		},
	}

	shiftSchema = object{
		"type": "object",
		"properties": object{
			"column":       object{"type": "string"},
			"ks_statistic": nullableNumber(),
			"p_value":      nullableNumber(),
			"verdict":      object{"type": "string", "description": "no significant change, significant change, insufficient data, or error: <message>"},
			"error":        analysisErrorSchema,
		},
	}

	errorSchema = object{
		"type": "object",
		"properties": object{
			"error":   object{"type": "string"},
			"message": object{"type": "string"},
			"code":    object{"type": "integer"},
		},
	}
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the analysis API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Air Quality Missing-Data API",
			"description": "Missing-value imputation and missingness analysis over hourly PRSA air-quality observations",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/data/summary": object{
				"get": object{
					"summary": "Dataset summary",
					"responses": object{
						"200": jsonContent("Row and column counts, station, time range and analysis columns", object{
							"type": "object",
							"properties": object{
								"rows":               object{"type": "integer"},
								"columns":            object{"type": "integer"},
								"analysis_columns":   object{"type": "array", "items": object{"type": "string"}},
								"analysis_variables": object{"type": "integer"},
								"station":            object{"type": "string"},
								"time_range": object{
									"type":     "object",
									"nullable": true,
									"properties": object{
										"start": object{"type": "string", "format": "date-time"},
										"end":   object{"type": "string", "format": "date-time"},
									},
								},
								"imputed_rows": object{"type": "integer"},
								"loaded_at":    object{"type": "string", "format": "date-time"},
								"source":       object{"type": "string"},
							},
						}),
					},
				},
			},
			"/api/missing": object{
				"get": object{
					"summary":     "Missing-value analysis",
					"description": "Missing counts before and after imputation and the missingness mechanism of each originally incomplete column",
					"responses": object{
						"200": jsonContent("Missing analysis", object{
							"type": "object",
							"properties": object{
								"before":  object{"type": "array", "items": columnCountSchema},
								"after":   object{"type": "array", "items": columnCountSchema},
								"types":   object{"type": "object", "additionalProperties": object{"type": "string"}},
								"records": object{"type": "array", "items": mechanismSchema},
							},
						}),
					},
				},
			},
			"/api/missing/ks": object{
				"get": object{
					"summary":     "Distribution shift tests",
					"description": "Two-sample Kolmogorov-Smirnov test of observed against imputed values per analysis column",
					"responses": object{
						"200": jsonContent("One result per originally incomplete analysis column", object{
							"type":  "array",
							"items": shiftSchema,
						}),
					},
				},
			},
			"/api/missing/{column}": object{
				"get": object{
					"summary": "Missingness mechanism of one column",
					"parameters": []object{
						{
							"name":     "column",
							"in":       "path",
							"required": true,
							"schema":   object{"type": "string"},
						},
					},
					"responses": object{
						"200": jsonContent("Mechanism record", mechanismSchema),
						"404": jsonContent("Unknown column", errorSchema),
					},
				},
			},
			"/api/reload": object{
				"post": object{
					"summary":     "Reload the dataset",
					"description": "Rebuilds the snapshot from the configured source; the previous snapshot is kept on failure",
					"responses": object{
						"200": jsonContent("Reloaded", object{
							"type": "object",
							"properties": object{
								"status":    object{"type": "string"},
								"rows":      object{"type": "integer"},
								"source":    object{"type": "string"},
								"loaded_at": object{"type": "string", "format": "date-time"},
							},
						}),
						"503": jsonContent("Reload failed", errorSchema),
					},
				},
			},
			"/health": object{
				"get": object{
					"summary":     "Health check",
					"description": "Check if the API is running",
					"responses": object{
						"200": jsonContent("API is healthy", object{
							"type": "object",
							"properties": object{
								"status": object{"type": "string"},
								"rows":   object{"type": "integer"},
							},
						}),
						"503": jsonContent("Backing store unreachable", object{"type": "object"}),
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content": object{
								"text/plain": object{
									"schema": object{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
