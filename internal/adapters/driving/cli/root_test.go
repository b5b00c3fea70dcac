package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "regula", rootCmd.Use)
	for _, name := range []string{"data-dir", "verbose", "env-file"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_FactoryReceivesOptions(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	installed := mocks

	var got Options
	closed := false
	serviceFactory = func(_ context.Context, opts Options) (*Services, error) {
		got = opts
		return &Services{
			Settings:  installed.settings,
			Ask:       installed.ask,
			Retrieval: installed.retrieval,
			Ingest:    installed.ingest,
			Document:  installed.document,
			Close:     func() { closed = true },
		}, nil
	}

	dir := t.TempDir()
	_, err := execute("--data-dir", dir, "index", "rebuild")

	require.NoError(t, err)
	assert.Equal(t, dir, got.DataDir)
	assert.True(t, got.FreshIndex)
	assert.True(t, closed)

	_, err = execute("index", "info")
	require.NoError(t, err)
	assert.False(t, got.FreshIndex)
}

func TestRootCmd_FactoryError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	serviceFactory = func(context.Context, Options) (*Services, error) {
		return nil, errors.New("database locked")
	}

	_, err := execute("index", "info")

	assert.EqualError(t, err, "database locked")
}

func TestRootCmd_VersionSkipsFactory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	serviceFactory = func(context.Context, Options) (*Services, error) {
		t.Fatal("factory must not run for version")
		return nil, nil
	}

	_, err := execute("version")
	assert.NoError(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "keys.env", "REGULA_TEST_KEY=from-file\n")
		t.Setenv("REGULA_TEST_KEY", "")
		require.NoError(t, os.Unsetenv("REGULA_TEST_KEY"))

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "from-file", os.Getenv("REGULA_TEST_KEY"))
	})

	t.Run("existing variables win", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "keys.env", "REGULA_TEST_KEY=from-file\n")
		t.Setenv("REGULA_TEST_KEY", "from-env")

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "from-env", os.Getenv("REGULA_TEST_KEY"))
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		err := loadEnv("/nonexistent/regula.env")
		assert.Error(t, err)
	})
}

func TestServeMux(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	metricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("regula_queries_total 1\n"))
	})

	mux, err := newServeMux()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "regula_queries_total")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestServeMux_RequiresServices(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	askService = nil

	_, err := newServeMux()
	assert.Error(t, err)
}
