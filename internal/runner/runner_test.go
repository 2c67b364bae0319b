package runner

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lendsight/engage-cli/internal/classifier"
	"github.com/lendsight/engage-cli/internal/config"
	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/recipe"
	"github.com/lendsight/engage-cli/internal/store"
	"github.com/lendsight/engage-cli/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Anthropic: config.AnthropicConfig{Model: "test-model", MaxTokens: 512, TimeoutSecs: 5},
		Batch:     config.BatchConfig{MaxConcurrentLeads: 2},
		Output:    config.OutputConfig{Dir: t.TempDir()},
	}
}

func loadTestRecipe(t *testing.T) *recipe.Recipe {
	t.Helper()
	rec, err := recipe.Load(filepath.Join("testdata", "engagement.yaml"))
	require.NoError(t, err)
	return rec
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "engage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: `{"sentiment":"positive","wants_callback":true}`}},
			Usage:   anthropic.TokenUsage{InputTokens: 50, OutputTokens: 10},
		}, nil)

	st := newTestStore(t)
	r := New(testConfig(t), loadTestRecipe(t), client, st)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	rows := readCSV(t, report.CSVPath)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"lead_id", "name", "user_response", "engagement_state", "sentiment", "wants_callback", "message_count"}, rows[0])

	// Rows come back in input order regardless of worker scheduling.
	assert.Equal(t, "L-001", rows[1][0])
	assert.Equal(t, "L-002", rows[2][0])
	assert.Equal(t, "L-003", rows[3][0])

	// L-001 pressed the interested button.
	assert.Equal(t, string(classifier.ResponseInterested), rows[1][2])
	assert.Equal(t, "interested", rows[1][3])
	assert.Equal(t, "positive", rows[1][4])
	assert.Equal(t, "TRUE", rows[1][5])
	assert.Equal(t, "2", rows[1][6])

	// L-002 got the offer but never replied.
	assert.Equal(t, string(classifier.ResponseIgnored), rows[2][2])
	assert.Equal(t, "unresponsive", rows[2][3])

	// L-003 has no transcript at all.
	assert.Equal(t, string(classifier.ResponseNoConversation), rows[3][2])
	assert.Equal(t, "never_contacted", rows[3][3])

	// Summary artifact exists and covers every lead.
	data, err := os.ReadFile(report.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Leads: 3 total, 3 processed, 0 skipped")

	// Run history recorded as complete.
	require.NotEmpty(t, report.RunID)
	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.ProcessedLeads)
	assert.Equal(t, 1, run.Result.ResponseCounts[string(classifier.ResponseInterested)])
}

func TestRunModelFailureStillCompletes(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	r := New(testConfig(t), loadTestRecipe(t), client, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	rows := readCSV(t, report.CSVPath)
	require.Len(t, rows, 4)

	// Extraction degraded to defaults: enum default is the N/A sentinel.
	assert.Equal(t, "N/A", rows[1][4])
	assert.Equal(t, "FALSE", rows[1][5])

	// Classification still worked without the model.
	assert.Equal(t, string(classifier.ResponseInterested), rows[1][2])
}

func TestRunWithoutLLMConfig(t *testing.T) {
	t.Parallel()

	rec := loadTestRecipe(t)
	rec.LLM = recipe.LLMConfig{}
	rec.OutputColumns = []string{"lead_id", "user_response", "engagement_state"}

	r := New(testConfig(t), rec, nil, nil)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	rows := readCSV(t, report.CSVPath)
	require.Len(t, rows, 4)
	assert.Equal(t, string(classifier.ResponseInterested), rows[1][1])
}

func TestRunIngestionFailureIsFatal(t *testing.T) {
	t.Parallel()

	rec := loadTestRecipe(t)
	rec.DataInput.Path = "absent.csv"

	r := New(testConfig(t), rec, nil, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunUnknownInputType(t *testing.T) {
	t.Parallel()

	rec := loadTestRecipe(t)
	rec.DataInput.Type = "carrier_pigeon"

	r := New(testConfig(t), rec, nil, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunLLMKeysWithoutClient(t *testing.T) {
	t.Parallel()

	r := New(testConfig(t), loadTestRecipe(t), nil, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestSeedContext(t *testing.T) {
	t.Parallel()

	leadCtx := seedContext(model.Lead{
		ID: "L-9", Name: "Maria", Phone: "5512345678", Email: "m@example.com",
		Product: "credito_personal", Amount: "50000", Stage: "new", AssignedTo: "carlos",
	})

	assert.Equal(t, "L-9", leadCtx.GetString("lead_id"))
	assert.Equal(t, "Maria", leadCtx.GetString("name"))
	assert.Equal(t, "carlos", leadCtx.GetString("assigned_to"))
	assert.Equal(t, []string{
		"lead_id", "name", "phone", "email", "product", "amount", "stage", "assigned_to",
	}, leadCtx.Keys())
}
