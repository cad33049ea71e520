package cli_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/register/internal/cli"
	"github.com/JonMunkholm/register/internal/registration"
)

const input = "first_name,middle_name,last_name,phone_number,social_id\n" +
	"John,,Doe,0123456789,123456789\n" +
	"Jane,,Roe,0123456789,987654321\n" +
	"Ann,Q,Lee,1111111111,111111111\n"

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "DB_URL", "REGISTER_INPUT", "REGISTER_SEED_FILE", "REGISTER_OUTPUT"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (registration.Summary, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return registration.Summary{}, err
	}

	var summary registration.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary), "stdout should be the JSON summary")
	return summary, nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunCommand(t *testing.T) {
	cleanEnv(t)
	in := writeInput(t, input)
	out := filepath.Join(t.TempDir(), "registered_accounts.csv")
	failed := filepath.Join(t.TempDir(), "failed.csv")

	summary, err := execute(t, "run", "--input", in, "--output", out, "--failed-output", failed)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRowsUpload)
	assert.Equal(t, 2, summary.TotalSuccess)
	assert.Equal(t, 1, summary.TotalError)
	require.Len(t, summary.NewAccounts, 2)
	assert.Equal(t, "Ann Q Lee", summary.NewAccounts[1].FullName)

	rows := readCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, registration.ExportHeader, rows[0])
	assert.Equal(t, summary.NewAccounts[0].AccountNumber, rows[1][3])

	rows = readCSV(t, failed)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[1][0])
}

func TestRunCommand_SeedFileRoundTrip(t *testing.T) {
	cleanEnv(t)
	in := writeInput(t, input)
	first := filepath.Join(t.TempDir(), "first.csv")
	second := filepath.Join(t.TempDir(), "second.csv")

	_, err := execute(t, "run", "-i", in, "-o", first)
	require.NoError(t, err)

	summary, err := execute(t, "run", "-i", in, "-o", second, "--seed-file", first)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSuccess)
	assert.Equal(t, 3, summary.TotalError)

	assert.Len(t, readCSV(t, second), 1, "only the header is written")
}

func TestRunCommand_EnvDefaults(t *testing.T) {
	cleanEnv(t)
	out := filepath.Join(t.TempDir(), "out.csv")
	t.Setenv("REGISTER_INPUT", writeInput(t, input))
	t.Setenv("REGISTER_OUTPUT", out)

	summary, err := execute(t, "run")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSuccess)
	assert.FileExists(t, out)
}

func TestRunCommand_Errors(t *testing.T) {
	cleanEnv(t)
	out := filepath.Join(t.TempDir(), "out.csv")

	t.Run("no input", func(t *testing.T) {
		_, err := execute(t, "run", "--output", out)
		require.ErrorIs(t, err, registration.ErrSourceUnavailable)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := execute(t, "run", "--input", filepath.Join(t.TempDir(), "nope.csv"), "--output", out)
		require.ErrorIs(t, err, registration.ErrSourceUnavailable)
		assert.NoFileExists(t, out)
	})

	t.Run("unwritable output", func(t *testing.T) {
		cmd := cli.NewRootCmdForTest()
		stdout := new(bytes.Buffer)
		cmd.SetOut(stdout)
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"run", "--input", writeInput(t, input), "--output", filepath.Join(t.TempDir(), "missing", "out.csv")})

		err := cmd.Execute()
		require.ErrorIs(t, err, registration.ErrSinkUnavailable)

		var summary registration.Summary
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary), "summary is printed even when the export fails")
		assert.Equal(t, 3, summary.TotalRowsUpload)
		assert.Equal(t, 2, summary.TotalSuccess)
		require.Len(t, summary.NewAccounts, 2)
		assert.NotEmpty(t, summary.NewAccounts[0].AccountNumber)
	})

	t.Run("persist without database", func(t *testing.T) {
		_, err := execute(t, "run", "--input", writeInput(t, input), "--output", out, "--persist")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unexpected argument", func(t *testing.T) {
		_, err := execute(t, "run", "extra")
		require.Error(t, err)
	})
}

func TestReportError(t *testing.T) {
	cleanEnv(t)
	_, err := execute(t, "run", "--input", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	var buf bytes.Buffer
	cli.ReportError(&buf, err)
	assert.Contains(t, buf.String(), "error: "+err.Error())
	assert.Contains(t, buf.String(), "(Code: FILE002)")
}

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "register dev")
}
