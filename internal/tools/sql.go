package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/pkg/models"
)

type SQLInput struct {
	Query      string `json:"query" jsonschema_description:"One SQL statement. PostGIS spatial functions are available."`
	Connection string `json:"connection,omitempty" jsonschema_description:"Named database connection. Defaults to the default connection."`
}

func sqlTools(pipeline *sqlexec.Pipeline) []Tool {
	op := func(kind models.OperationKind) func(json.RawMessage) (models.OperationRequest, error) {
		return func(input json.RawMessage) (models.OperationRequest, error) {
			in, err := decode[SQLInput](input)
			if err != nil {
				return models.OperationRequest{}, err
			}
			if in.Query == "" {
				return models.OperationRequest{}, errors.New("query is required")
			}
			return models.OperationRequest{Kind: kind, Query: in.Query}, nil
		}
	}
	handler := func(readOnly bool) func(context.Context, json.RawMessage) (any, error) {
		return func(ctx context.Context, input json.RawMessage) (any, error) {
			in, err := decode[SQLInput](input)
			if err != nil {
				return nil, err
			}
			return pipeline.Execute(ctx, in.Connection, in.Query, readOnly)
		}
	}

	return []Tool{
		{
			Definition: models.ToolDefinition{
				Name:        "sql_query",
				Description: "Run a read-only SQL statement. A row limit is applied when the statement has none.",
				InputSchema: GenerateSchema[SQLInput](),
			},
			Operation: op(models.OpQueryReadOnly),
			Handler:   handler(true),
		},
		{
			Definition: models.ToolDefinition{
				Name:        "sql_execute",
				Description: "Run a SQL statement that may modify data. Destructive patterns are still rejected.",
				InputSchema: GenerateSchema[SQLInput](),
			},
			Operation: op(models.OpQueryWrite),
			Handler:   handler(false),
		},
	}
}
