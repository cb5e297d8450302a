package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/llm"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func campaignSchema() *SchemaDescription {
	rows := int64(1200)
	return &SchemaDescription{
		Tables: []TableDescription{
			{Name: "campaigns", RowCount: &rows, Columns: []ColumnDescription{
				{Name: "id", Type: "integer", IsPrimary: true},
				{Name: "name", Type: "varchar"},
			}},
			{Name: "campaign_metrics", Columns: []ColumnDescription{
				{Name: "campaign_id", Type: "integer"},
				{Name: "spend", Type: "numeric", IsNullable: true},
			}},
		},
		Relationships: []RelationshipDescription{{
			Name:         "campaign_metrics_campaign_id_fkey",
			SourceTable:  "campaign_metrics",
			SourceColumn: "campaign_id",
			TargetTable:  "campaigns",
			TargetColumn: "id",
		}},
	}
}

func TestGenerateSQL_BuildsPromptAndStripsFences(t *testing.T) {
	mock := llm.NewMockLLMClientWithResponse("```sql\nSELECT name FROM campaigns ORDER BY name\n```")
	svc := NewSQLGenerationService(mock, 0.1, zap.NewNop())

	sqlText, err := svc.GenerateSQL(context.Background(), "List campaign names", campaignSchema())
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM campaigns ORDER BY name", sqlText)

	require.Equal(t, 1, mock.GenerateResponseCalls())
	prompt := mock.Prompts()[0]
	assert.Contains(t, prompt, `"name": "campaign_metrics"`)
	assert.Contains(t, prompt, `"targetTable": "campaigns"`)
	assert.Contains(t, prompt, "- campaign_metrics: one row per campaign metric")
	assert.Contains(t, prompt, "- campaigns: one row per campaign\n")
	assert.True(t, strings.HasSuffix(prompt, "Question: List campaign names\n\nSQL query:"))
	assert.Equal(t, sqlSystemPrompt, mock.SystemMessages()[0])
}

func TestGenerateSQL_Errors(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		mock := llm.NewMockLLMClient()
		mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
			return nil, errors.New("rate limited")
		}
		_, err := NewSQLGenerationService(mock, 0, zap.NewNop()).GenerateSQL(context.Background(), "q", campaignSchema())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("empty answer", func(t *testing.T) {
		mock := llm.NewMockLLMClientWithResponse("```\n```")
		_, err := NewSQLGenerationService(mock, 0, zap.NewNop()).GenerateSQL(context.Background(), "q", campaignSchema())
		assert.Error(t, err)
	})
}

func TestGenerateInsights(t *testing.T) {
	content := `Here you go:
[
  {"title": "Top ROI", "description": "Campaign 3 leads", "type": "positive"},
  {"title": "", "description": ""},
  {"title": "Odd type", "description": "Spend is flat", "type": "alarming"},
  {"title": "A", "description": "a", "type": "info"},
  {"title": "B", "description": "b", "type": "neutral"},
  {"title": "C", "description": "c", "type": "negative"},
  {"title": "D", "description": "d", "type": "info"}
]`
	mock := llm.NewMockLLMClientWithResponse(content)
	svc := NewSQLGenerationService(mock, 0.3, zap.NewNop())

	rows := make([]map[string]any, 150)
	for i := range rows {
		rows[i] = map[string]any{"id": i}
	}
	insights := svc.GenerateInsights(context.Background(), "Which campaign is best?", "SELECT 1", rows)

	require.Len(t, insights, 5)
	assert.Equal(t, "Top ROI", insights[0].Title)
	assert.Equal(t, models.InsightTypePositive, insights[0].Type)
	assert.Equal(t, models.InsightTypeInfo, insights[1].Type)
	assert.Equal(t, "C", insights[4].Title)

	prompt := mock.Prompts()[0]
	assert.Contains(t, prompt, "Results (first 100 rows)")
	assert.NotContains(t, prompt, `"id":100`)
}

func TestGenerateInsights_DegradesToEmpty(t *testing.T) {
	for name, mock := range map[string]*llm.MockLLMClient{
		"not json": llm.NewMockLLMClientWithResponse("Campaign 3 is the best."),
		"error": func() *llm.MockLLMClient {
			m := llm.NewMockLLMClient()
			m.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
				return nil, errors.New("timeout")
			}
			return m
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewSQLGenerationService(mock, 0, zap.NewNop())
			insights := svc.GenerateInsights(context.Background(), "q", "SELECT 1", nil)
			assert.NotNil(t, insights)
			assert.Empty(t, insights)
		})
	}
}

func TestSuggestVisualizations(t *testing.T) {
	var items []string
	for _, typ := range []string{"bar", "radar", "line", "pie", "scatter", "table"} {
		items = append(items, fmt.Sprintf(`{"type": %q, "title": "%s chart", "description": "d"}`, typ, typ))
	}
	mock := llm.NewMockLLMClientWithResponse("[" + strings.Join(items, ",") + "]")
	svc := NewSQLGenerationService(mock, 0, zap.NewNop())

	rows := make([]map[string]any, 30)
	for i := range rows {
		rows[i] = map[string]any{"id": i}
	}
	suggestions := svc.SuggestVisualizations(context.Background(), "q", "SELECT 1", rows)

	require.Len(t, suggestions, 4)
	assert.Equal(t, models.VisualizationBar, suggestions[0].Type)
	assert.Equal(t, models.VisualizationLine, suggestions[1].Type)
	assert.Equal(t, models.VisualizationScatter, suggestions[3].Type)
	assert.Contains(t, mock.Prompts()[0], "Results (first 20 rows)")
	assert.Equal(t, visualizationsSystemPrompt, mock.SystemMessages()[0])
}

func TestBuildSchemaDescription(t *testing.T) {
	desc := BuildSchemaDescription(
		[]models.DataSourceTable{{Name: "orders", Columns: []models.DataSourceColumn{{Name: "id", Type: "integer", IsPrimary: true}}}},
		nil,
	)
	require.Len(t, desc.Tables, 1)
	assert.True(t, desc.Tables[0].Columns[0].IsPrimary)
	assert.NotNil(t, desc.Relationships)
	assert.Empty(t, desc.Relationships)
}
