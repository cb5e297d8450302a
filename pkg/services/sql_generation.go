package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/llm"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

const (
	insightSampleRows       = 100
	visualizationSampleRows = 20
	maxInsights             = 5
	maxVisualizations       = 4
)

// SQLGenerationService turns questions into SQL and query results into
// insights and chart suggestions through the LLM.
type SQLGenerationService interface {
	// GenerateSQL returns a single SQL statement answering question.
	GenerateSQL(ctx context.Context, question string, schema *SchemaDescription) (string, error)

	// GenerateInsights summarizes result rows. Failures yield an empty list.
	GenerateInsights(ctx context.Context, question, sqlText string, rows []map[string]any) []models.Insight

	// SuggestVisualizations proposes charts for result rows. Failures yield an empty list.
	SuggestVisualizations(ctx context.Context, question, sqlText string, rows []map[string]any) []models.VisualizationSuggestion
}

// SchemaDescription is the schema JSON embedded in SQL generation prompts.
type SchemaDescription struct {
	Tables        []TableDescription        `json:"tables"`
	Relationships []RelationshipDescription `json:"relationships"`
}

type TableDescription struct {
	Name     string              `json:"name"`
	RowCount *int64              `json:"rowCount"`
	Columns  []ColumnDescription `json:"columns"`
}

type ColumnDescription struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	IsPrimary   bool    `json:"isPrimary"`
	IsNullable  bool    `json:"isNullable"`
	Description *string `json:"description,omitempty"`
}

type RelationshipDescription struct {
	Name         string `json:"name"`
	SourceTable  string `json:"sourceTable"`
	SourceColumn string `json:"sourceColumn"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
}

// BuildSchemaDescription flattens stored schema rows for a prompt.
func BuildSchemaDescription(tables []models.DataSourceTable, relationships []models.DataSourceRelationship) *SchemaDescription {
	desc := &SchemaDescription{
		Tables:        make([]TableDescription, 0, len(tables)),
		Relationships: make([]RelationshipDescription, 0, len(relationships)),
	}
	for _, t := range tables {
		td := TableDescription{Name: t.Name, RowCount: t.RowCount, Columns: make([]ColumnDescription, 0, len(t.Columns))}
		for _, c := range t.Columns {
			td.Columns = append(td.Columns, ColumnDescription{
				Name:        c.Name,
				Type:        c.Type,
				IsPrimary:   c.IsPrimary,
				IsNullable:  c.IsNullable,
				Description: c.Description,
			})
		}
		desc.Tables = append(desc.Tables, td)
	}
	for _, r := range relationships {
		desc.Relationships = append(desc.Relationships, RelationshipDescription{
			Name:         r.Name,
			SourceTable:  r.SourceTable,
			SourceColumn: r.SourceColumn,
			TargetTable:  r.TargetTable,
			TargetColumn: r.TargetColumn,
		})
	}
	return desc
}

type sqlGenerationService struct {
	client      llm.LLMClient
	temperature float64
	logger      *zap.Logger
}

// NewSQLGenerationService creates the generation collaborator.
func NewSQLGenerationService(client llm.LLMClient, temperature float64, logger *zap.Logger) SQLGenerationService {
	return &sqlGenerationService{
		client:      client,
		temperature: temperature,
		logger:      logger.Named("sql-generation"),
	}
}

var _ SQLGenerationService = (*sqlGenerationService)(nil)

const sqlSystemPrompt = `You are an expert SQL generator. Given a database schema and a question in natural language, write one SQL query that answers the question.
Return only the SQL query without explanations, comments or markdown formatting.
Only read data: the query must be a single SELECT statement.`

func (s *sqlGenerationService) GenerateSQL(ctx context.Context, question string, schema *SchemaDescription) (string, error) {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("Database schema:\n")
	b.Write(schemaJSON)
	b.WriteString("\n\n")
	if hints := entityHints(schema); hints != "" {
		b.WriteString("Table meanings:\n")
		b.WriteString(hints)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nSQL query:")

	resp, err := s.client.GenerateResponse(ctx, b.String(), sqlSystemPrompt, s.temperature)
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}

	sqlText := strings.TrimSpace(llm.StripCodeFences(resp.Content))
	if sqlText == "" {
		return "", fmt.Errorf("failed to generate SQL: empty response")
	}
	s.logger.Debug("Generated SQL",
		zap.String("model", s.client.GetModel()),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens))
	return sqlText, nil
}

// entityHints names the entity each table holds, one line per table:
// "- campaign_metrics: one row per campaign metric".
func entityHints(schema *SchemaDescription) string {
	var b strings.Builder
	for _, t := range schema.Tables {
		entity := inflection.Singular(strings.ReplaceAll(t.Name, "_", " "))
		fmt.Fprintf(&b, "- %s: one row per %s\n", t.Name, entity)
	}
	return b.String()
}

const insightsSystemPrompt = `You are a data analyst. You explain query results to business users.
Respond only with a JSON array of 3 to 5 objects with the fields "title", "description" and "type".
"type" is one of: info, positive, negative, neutral.`

func (s *sqlGenerationService) GenerateInsights(ctx context.Context, question, sqlText string, rows []map[string]any) []models.Insight {
	prompt, err := resultPrompt(question, sqlText, rows, insightSampleRows)
	if err != nil {
		s.logger.Warn("Failed to build insights prompt", zap.Error(err))
		return []models.Insight{}
	}

	resp, err := s.client.GenerateResponse(ctx, prompt, insightsSystemPrompt, s.temperature)
	if err != nil {
		s.logger.Warn("Insight generation failed", zap.Error(err))
		return []models.Insight{}
	}
	parsed, err := llm.ParseJSONResponse[[]models.Insight](resp.Content)
	if err != nil {
		s.logger.Warn("Failed to parse insights", zap.Error(err))
		return []models.Insight{}
	}

	insights := make([]models.Insight, 0, len(parsed))
	for _, in := range parsed {
		if in.Title == "" && in.Description == "" {
			continue
		}
		if !in.Type.IsValid() {
			in.Type = models.InsightTypeInfo
		}
		insights = append(insights, in)
		if len(insights) == maxInsights {
			break
		}
	}
	return insights
}

const visualizationsSystemPrompt = `You are a data visualization expert. You pick charts for query results.
Respond only with a JSON array of 2 to 4 objects with the fields "type", "title" and "description".
"type" is one of: bar, line, pie, scatter, table.`

func (s *sqlGenerationService) SuggestVisualizations(ctx context.Context, question, sqlText string, rows []map[string]any) []models.VisualizationSuggestion {
	prompt, err := resultPrompt(question, sqlText, rows, visualizationSampleRows)
	if err != nil {
		s.logger.Warn("Failed to build visualization prompt", zap.Error(err))
		return []models.VisualizationSuggestion{}
	}

	resp, err := s.client.GenerateResponse(ctx, prompt, visualizationsSystemPrompt, s.temperature)
	if err != nil {
		s.logger.Warn("Visualization suggestion failed", zap.Error(err))
		return []models.VisualizationSuggestion{}
	}
	parsed, err := llm.ParseJSONResponse[[]models.VisualizationSuggestion](resp.Content)
	if err != nil {
		s.logger.Warn("Failed to parse visualization suggestions", zap.Error(err))
		return []models.VisualizationSuggestion{}
	}

	out := make([]models.VisualizationSuggestion, 0, len(parsed))
	for _, v := range parsed {
		if !v.Type.IsValid() {
			continue
		}
		out = append(out, v)
		if len(out) == maxVisualizations {
			break
		}
	}
	return out
}

func resultPrompt(question, sqlText string, rows []map[string]any, sample int) (string, error) {
	if len(rows) > sample {
		rows = rows[:sample]
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return fmt.Sprintf("Question: %s\n\nSQL query:\n%s\n\nResults (first %d rows):\n%s", question, sqlText, len(rows), data), nil
}
