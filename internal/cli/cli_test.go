package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "replay.db")
	body := fmt.Sprintf("db:\n  driver: sqlite3\n  dsn: %s\nlog:\n  level: warn\n%s", dbPath, extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const captureBody = `{"ac":[{"hex":"a1b2c3","flight":"UAL123","r":"N12345","t":"B738","lat":40.7,"lon":-74.1},{"hex":"abc999","flight":"N12AB"}],"now":1759944600000,"total":2,"_meta":{"captured_at":"2025-10-08T17:30:00Z"}}`

func TestCLI_ImportSeedRelinkExportCleanup(t *testing.T) {
	cfgPath, dir := writeTestConfig(t, "")
	captures := filepath.Join(dir, "captures")
	require.NoError(t, os.MkdirAll(captures, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(captures, "adsb_20251008T173000Z.json"), []byte(captureBody), 0o644))

	_, err := run(t, "--config", cfgPath, "import", "snapshots", "--dir", captures)
	require.NoError(t, err)

	_, err = run(t, "--config", cfgPath, "airlines", "seed")
	require.NoError(t, err)

	_, err = run(t, "--config", cfgPath, "airlines", "relink", "--batch-size", "1")
	require.NoError(t, err)

	outFile := filepath.Join(dir, "flights.csv")
	stdout, err := run(t, "--config", cfgPath, "export", "flights", "--out", outFile)
	require.NoError(t, err)
	want := "flight,registration,model\nN12AB,,\nUAL123,N12345,B738\n"
	assert.Equal(t, want, stdout)
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, want, string(written))

	_, err = run(t, "--config", cfgPath, "aircraft", "cleanup")
	require.NoError(t, err)

	stdout, err = run(t, "--config", cfgPath, "export", "flights", "--out", outFile)
	require.NoError(t, err)
	assert.Equal(t, "flight,registration,model\nUAL123,N12345,B738\n", stdout)
}

func TestCLI_Fetch(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"ac":[],"now":1,"total":0}`))
	}))
	defer srv.Close()

	cfgPath, _ := writeTestConfig(t, "feed:\n  base_url: "+srv.URL+"\n")
	stdout, err := run(t, "--config", cfgPath, "fetch", "--point-endpoint", "--lat", "1", "--lon", "2", "--radius", "5")
	require.NoError(t, err)

	assert.Equal(t, "/v2/point/1/2/5", path)
	assert.True(t, strings.HasPrefix(stdout, "{\n  \"ac\": []"), stdout)
}

func TestCLI_RecordRejectsRadius(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")
	_, err := run(t, "--config", cfgPath, "record", "--radius", "300")
	assert.Error(t, err)
}

func TestCLI_InvalidConfig(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "query:\n  search_limit: 0\n")
	_, err := run(t, "--config", cfgPath, "airlines", "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCLI_ImportAircraftNeedsFiles(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")
	_, err := run(t, "--config", cfgPath, "import", "aircraft")
	assert.Error(t, err)
}
