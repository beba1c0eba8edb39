package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/daylog/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("DAYLOG_DEV_MODE", "false")
	os.Exit(m.Run())
}

const sampleLog = `20240104
Getup:06:30
08:00 study
23:30 shower

20240105
Getup:07:00
08:00 study
12:00 exercise-cardio // intervals
`

// testEnv holds per-test db/config paths.
type testEnv struct {
	dir     string
	dbPath  string
	cfgPath string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "daylog.db"),
		cfgPath: filepath.Join(dir, "config.toml"),
	}
}

func (e testEnv) args(args ...string) []string {
	return append([]string{"--db", e.dbPath, "--config", e.cfgPath}, args...)
}

func (e testEnv) writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--version"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"nope"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
}

// TestRunImportAndTotals verifies behavior for the covered scenario.
func TestRunImportAndTotals(t *testing.T) {
	env := newTestEnv(t)
	logPath := env.writeLog(t, "jan.log", sampleLog)

	var out strings.Builder
	if err := run(context.Background(), env.args("import", logPath), &out, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 days, 5 records") {
		t.Fatalf("unexpected import output %q", out.String())
	}
	if _, err := os.Stat(env.dbPath); err != nil {
		t.Fatalf("expected db created, stat error %v", err)
	}

	out.Reset()
	if err := run(context.Background(), env.args("totals", "--from", "2024-01-01", "--to", "2024-01-31"), &out, io.Discard); err != nil {
		t.Fatalf("run(totals) error = %v", err)
	}
	for _, want := range []string{"routine", "sleep", "7:30", "exercise", "4:00"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in totals output, got %q", want, out.String())
		}
	}

	if err := run(context.Background(), env.args("import", logPath), io.Discard, io.Discard); err == nil {
		t.Fatal("expected re-import to fail")
	}

	out.Reset()
	if err := run(context.Background(), env.args("purge", "--from", "2024-01-01", "--to", "2024-01-31"), &out, io.Discard); err != nil {
		t.Fatalf("run(purge) error = %v", err)
	}
	if !strings.Contains(out.String(), "purged 2 days, 5 records, 1 batches") {
		t.Fatalf("unexpected purge output %q", out.String())
	}
}

// TestRunImportBlockedByErrors verifies behavior for the covered scenario.
func TestRunImportBlockedByErrors(t *testing.T) {
	env := newTestEnv(t)
	logPath := env.writeLog(t, "bad.log", "20240104\nGetup:06:30\n08:00 study\n")

	var out strings.Builder
	err := run(context.Background(), env.args("import", logPath), &out, io.Discard)
	if err == nil {
		t.Fatal("expected import to be blocked")
	}
	if !strings.Contains(out.String(), string(domain.KindTooFewActivities)) {
		t.Fatalf("expected issue table in output, got %q", out.String())
	}

	if err := run(context.Background(), env.args("import", "--force", logPath), io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import --force) error = %v", err)
	}
}

// TestRunValidateReportsIssues verifies behavior for the covered scenario.
func TestRunValidateReportsIssues(t *testing.T) {
	env := newTestEnv(t)
	good := env.writeLog(t, "good.log", sampleLog)

	var out strings.Builder
	if err := run(context.Background(), env.args("validate", good), &out, io.Discard); err != nil {
		t.Fatalf("run(validate) error = %v", err)
	}
	if !strings.Contains(out.String(), "no issues") {
		t.Fatalf("expected clean validation, got %q", out.String())
	}

	gap := env.writeLog(t, "gap.log", strings.Join([]string{
		"20240101", "Getup:07:00", "08:00 study", "09:00 shower",
		"20240103", "Getup:07:00", "08:00 study", "09:00 shower",
	}, "\n"))
	out.Reset()
	err := run(context.Background(), env.args("validate", gap), &out, io.Discard)
	if !errors.Is(err, errValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !strings.Contains(out.String(), "missing date 2024-01-02") {
		t.Fatalf("expected missing date issue, got %q", out.String())
	}
}

// TestRunConvertThenValidateJSON verifies behavior for the covered scenario.
func TestRunConvertThenValidateJSON(t *testing.T) {
	env := newTestEnv(t)
	logPath := env.writeLog(t, "jan.log", sampleLog)
	outPath := filepath.Join(env.dir, "out", "days.json")

	if err := run(context.Background(), env.args("convert", logPath, "--out", outPath), io.Discard, io.Discard); err != nil {
		t.Fatalf("run(convert) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var days []domain.Day
	if err := json.Unmarshal(content, &days); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(days) != 2 || len(days[1].Activities) != 3 {
		t.Fatalf("unexpected converted days %#v", days)
	}

	var out strings.Builder
	if err := run(context.Background(), env.args("validate", "--json", outPath), &out, io.Discard); err != nil {
		t.Fatalf("run(validate --json) error = %v", err)
	}

	broken := env.writeLog(t, "broken.json", `{"date": "2024-01-01"}`)
	out.Reset()
	if err := run(context.Background(), env.args("validate", "--json", broken), &out, io.Discard); err == nil {
		t.Fatal("expected non-array document to fail validation")
	}
	if !strings.Contains(out.String(), "root must be an array") {
		t.Fatalf("expected root-array issue, got %q", out.String())
	}
}

// TestRunConvertToStdout verifies behavior for the covered scenario.
func TestRunConvertToStdout(t *testing.T) {
	env := newTestEnv(t)
	logPath := env.writeLog(t, "jan.log", sampleLog)

	var out bytes.Buffer
	if err := run(context.Background(), env.args("convert", logPath), &out, io.Discard); err != nil {
		t.Fatalf("run(convert) error = %v", err)
	}
	if !json.Valid(out.Bytes()) {
		t.Fatalf("expected JSON on stdout, got %q", out.String())
	}
	if !strings.Contains(out.String(), `"project_path": "sleep_night"`) {
		t.Fatalf("expected synthesized sleep in output, got %q", out.String())
	}
}

// TestRunConfigAndDBEnvOverrides verifies behavior for the covered scenario.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	cfgContent := "[database]\npath = \"/tmp/ignore-me.db\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	logPath := filepath.Join(tmp, "jan.log")
	if err := os.WriteFile(logPath, []byte(sampleLog), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("DAYLOG_CONFIG", cfgPath)
	t.Setenv("DAYLOG_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"import", logPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "daylogx", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: daylogx", "dev_mode: true", "logs_dir:"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

// TestRunInitWritesDefaultConfig verifies behavior for the covered scenario.
func TestRunInitWritesDefaultConfig(t *testing.T) {
	env := newTestEnv(t)
	env.cfgPath = filepath.Join(env.dir, "nested", "config.toml")

	var out strings.Builder
	if err := run(context.Background(), env.args("init"), &out, io.Discard); err != nil {
		t.Fatalf("run(init) error = %v", err)
	}
	if !strings.Contains(out.String(), "wrote config") {
		t.Fatalf("expected write confirmation, got %q", out.String())
	}
	content, err := os.ReadFile(env.cfgPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "date_continuity") {
		t.Fatalf("expected validation table in config, got %q", content)
	}

	if err := run(context.Background(), env.args("init"), io.Discard, io.Discard); err == nil {
		t.Fatal("expected init to refuse an existing config")
	}
	if err := run(context.Background(), env.args("init", "--force"), io.Discard, io.Discard); err != nil {
		t.Fatalf("run(init --force) error = %v", err)
	}

	logPath := env.writeLog(t, "jan.log", sampleLog)
	if err := run(context.Background(), env.args("validate", logPath), io.Discard, io.Discard); err != nil {
		t.Fatalf("run(validate with written config) error = %v", err)
	}
}

// TestRunDefaultsInputsToLogsDir verifies behavior for the covered scenario.
func TestRunDefaultsInputsToLogsDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG data dir override is linux-only")
	}
	env := newTestEnv(t)
	dataHome := filepath.Join(env.dir, "data")
	t.Setenv("XDG_DATA_HOME", dataHome)
	logsDir := filepath.Join(dataHome, "daylog", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(logsDir, "jan.log"), []byte(sampleLog), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out strings.Builder
	if err := run(context.Background(), env.args("--app", "daylog", "validate"), &out, io.Discard); err != nil {
		t.Fatalf("run(validate) error = %v", err)
	}
	if !strings.Contains(out.String(), "no issues") {
		t.Fatalf("expected clean validation, got %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), env.args("--app", "daylog", "import"), &out, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 days") {
		t.Fatalf("expected import summary, got %q", out.String())
	}
}

// TestRunRejectsInvalidConfig verifies behavior for the covered scenario.
func TestRunRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	logPath := env.writeLog(t, "jan.log", sampleLog)
	content := "[logging]\nlevel = \"loud\"\n"
	if err := os.WriteFile(env.cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), env.args("validate", logPath), io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

// TestRunDevModeCreatesWorkspaceLogFile verifies behavior for the covered scenario.
func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	workspace := t.TempDir()
	t.Chdir(workspace)

	logPath := filepath.Join(workspace, "jan.log")
	if err := os.WriteFile(logPath, []byte(sampleLog), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	args := []string{"--dev", "--db", filepath.Join(workspace, "daylog.db"), "--config", filepath.Join(workspace, "config.toml"), "validate", logPath}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	logDir := filepath.Join(workspace, ".daylog", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	foundLog := false
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			foundLog = true
			break
		}
	}
	if !foundLog {
		t.Fatalf("expected at least one .log file in %s, got %v", logDir, entries)
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies workspace-root resolution behavior.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "daylog")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	got := workspaceRootFrom(nested)
	if filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

// TestDevLogFilePathNamesFileByDay verifies log file naming.
func TestDevLogFilePathNamesFileByDay(t *testing.T) {
	dir := t.TempDir()
	got, err := devLogFilePath(dir, "day log", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if want := filepath.Join(dir, "day-log-20260222.log"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// TestFormatDuration verifies duration rendering.
func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{0: "0:00", 59: "0:00", 27000: "7:30", 90061: "25:01", -3600: "-1:00"}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Fatalf("formatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

// TestParseBoolEnv verifies behavior for the covered scenario.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("DAYLOG_BOOL_TEST", "true")
	if v, ok := parseBoolEnv("DAYLOG_BOOL_TEST"); !ok || !v {
		t.Fatalf("expected true/ok, got %t/%t", v, ok)
	}
	t.Setenv("DAYLOG_BOOL_TEST", "maybe")
	if _, ok := parseBoolEnv("DAYLOG_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
}
