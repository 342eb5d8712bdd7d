package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/host"
	"github.com/reglet-dev/dlhost/internal/cli"
	"github.com/reglet-dev/dlhost/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeterPath = "/opt/plugins/libgreeter.so"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DLHOST_PLUGIN", "DLHOST_BACKEND", "DLHOST_LOG_LEVEL", "DLHOST_LOG_FORMAT", "DLHOST_METRICS_ADDR"} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, loader *testutil.FakeLoader, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCommand(
		cli.WithOutput(&out),
		cli.WithErrOutput(&errOut),
		cli.WithHostOptions(host.WithLoader(loader), host.WithFingerprint(false)),
	)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func greeterLoader() *testutil.FakeLoader {
	return testutil.NewFakeLoader().Register(greeterPath, &testutil.FakePlugin{
		Exchange: testutil.WriteContent([]byte("hello, dlhost")),
		Greeting: "hi there",
	})
}

func TestRun_Override(t *testing.T) {
	loader := greeterLoader()
	out, err := execute(t, loader, "run", greeterPath, "--capacity", "64", "--contents", "raw")
	require.NoError(t, err)

	assert.Contains(t, out, "ok loaded /opt/plugins/libgreeter.so (fake, generation 1)")
	assert.Contains(t, out, "ok hello: hi there")
	assert.Contains(t, out, "ok override: plugin wrote 13 of 64 bytes\nhello, dlhost\n")
	assert.Contains(t, out, "ok unloaded (generation 2)")
	assert.Equal(t, 1, loader.Closes())
	assert.True(t, loader.Closed(), "the host closes its loader")
}

func TestRun_Probe(t *testing.T) {
	out, err := execute(t, greeterLoader(), "run", greeterPath, "--probe", "--capacity", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "ok probe: plugin needs 13 bytes (capacity 4)")
	assert.NotContains(t, out, "hello, dlhost")
}

func TestRun_HexContents(t *testing.T) {
	out, err := execute(t, greeterLoader(), "run", greeterPath, "--contents", "hex")
	require.NoError(t, err)
	assert.Contains(t, out, "68 65 6c 6c 6f 2c 20 64")
}

func TestRun_DeclinedIsSoft(t *testing.T) {
	out, err := execute(t, greeterLoader(), "run", greeterPath, "--capacity", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "declined exchange_declined")
	assert.Contains(t, out, "ok unloaded")
}

func TestRun_Violation(t *testing.T) {
	loader := testutil.NewFakeLoader().Register(greeterPath, &testutil.FakePlugin{Exchange: testutil.FixedCount(1 << 20)})
	_, err := execute(t, loader, "run", greeterPath, "--capacity", "16")
	require.Error(t, err)
	assert.Equal(t, errors.KindProtocolViolation, errors.KindOf(err))
	assert.Equal(t, 0, loader.LiveImages())
}

func TestRun_PluginFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugin: "+greeterPath+"\nexchange:\n  capacity: 32\n  override: false\n"), 0o600))

	out, err := execute(t, greeterLoader(), "--config", path, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "ok probe: plugin needs 13 bytes (capacity 32)")
}

func TestRun_Errors(t *testing.T) {
	_, err := execute(t, greeterLoader(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugin given")

	_, err = execute(t, greeterLoader(), "run", "/opt/plugins/missing.so")
	assert.Equal(t, errors.KindLoad, errors.KindOf(err))

	_, err = execute(t, greeterLoader(), "--log-level", "chatty", "run", greeterPath)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))

	_, err = execute(t, greeterLoader(), "--backend", "jvm", "run", greeterPath)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, greeterLoader(), "schema")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "properties")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, greeterLoader(), "--backend", "wasm", "validate", "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "ok configuration is valid (backend wasm)")
	assert.Contains(t, out, "capacity: 4096")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exchange:\n  capacity: -5\n"), 0o600))
	_, err = execute(t, greeterLoader(), "--config", path, "validate")
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}
