package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute("ask")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_PrintsAnswerWithSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ask", "¿Cuándo inicia el semestre?")

	require.NoError(t, err)
	assert.Contains(t, out, "10 de marzo")
	assert.Contains(t, out, "Fuentes:")
	assert.Contains(t, out, "Calendario Académico 2025, página 2 (https://example.edu/calendario.pdf)")
	assert.Contains(t, out, "Outcome: ANSWERED")
	assert.Equal(t, "¿Cuándo inicia el semestre?", mocks.ask.question)
}

func TestAskCmd_PassesOptions(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ask", "--mode", "compare", "-p", "chatgpt", "-p", "gemini", "-k", "4", "pregunta")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerModeCompare, mocks.ask.opts.Mode)
	assert.Equal(t, []string{"chatgpt", "gemini"}, mocks.ask.opts.Providers)
	assert.Equal(t, 4, mocks.ask.opts.TopK)
}

func TestAskCmd_Abstention(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ask.result = &domain.AskResult{
		Mode:    domain.AnswerModeSingle,
		Outcome: domain.OutcomeAbstained,
		Answers: []domain.Answer{domain.NewAbstention("retrieval", "")},
	}

	out, err := execute("ask", "¿Cuánto cuesta la matrícula?")

	require.NoError(t, err)
	assert.Contains(t, out, domain.RefusalMessage)
	assert.Contains(t, out, "Consulta con: "+domain.DefaultSuggestedOffice)
	assert.NotContains(t, out, "Fuentes:")
	assert.Contains(t, out, "Outcome: ABSTAINED")
}

func TestAskCmd_CompareShowsEachProvider(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	answered := mocks.ask.result.Answers[0]
	mocks.ask.result = &domain.AskResult{
		Mode:    domain.AnswerModeCompare,
		Outcome: domain.OutcomeAnswered,
		Answers: []domain.Answer{answered, domain.NewAbstention("deepseek", "")},
	}

	out, err := execute("ask", "--mode", "compare", "pregunta")

	require.NoError(t, err)
	assert.Contains(t, out, "== chatgpt ==")
	assert.Contains(t, out, "== deepseek ==")
}

func TestAskCmd_SkippedProvidersAreSorted(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ask.result.Unavailable = map[string]string{
		"gemini":   "missing api key",
		"claude":   "not configured",
		"deepseek": "missing api key",
	}

	for i := 0; i < 5; i++ {
		out, err := execute("ask", "pregunta")
		require.NoError(t, err)

		c := strings.Index(out, "Skipped claude: not configured")
		d := strings.Index(out, "Skipped deepseek: missing api key")
		g := strings.Index(out, "Skipped gemini: missing api key")
		require.True(t, c >= 0 && d >= 0 && g >= 0, out)
		assert.True(t, c < d && d < g, "skipped providers out of order:\n%s", out)
	}
}

func TestAskCmd_TransportFailureFails(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ask.result = &domain.AskResult{Outcome: domain.OutcomeTransportFailure}
	mocks.ask.err = &domain.TransportFailure{Failures: map[string]error{"chatgpt": errors.New("timeout")}}

	out, err := execute("ask", "pregunta")

	require.Error(t, err)
	assert.True(t, domain.IsTransportFailure(err))
	assert.Contains(t, out, "Outcome: TRANSPORT_FAILURE")
}

func TestAskCmd_OtherErrors(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ask.result = nil
	mocks.ask.err = domain.ErrEmbeddingMismatch

	_, err := execute("ask", "pregunta")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestAskCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ask", "--json", "pregunta")

	require.NoError(t, err)
	var result domain.AskResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.OutcomeAnswered, result.Outcome)
	require.Len(t, result.Answers, 1)
	assert.Equal(t, "página 2", result.Answers[0].Citations[0].Locator)
}

func TestAskCmd_NotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	askService = nil

	_, err := execute("ask", "pregunta")
	assert.EqualError(t, err, "ask service not configured")
}
