package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/store"
)

var testFallback = common.HexToAddress("0x00000000000000000000000000000000fa11bac4")

// startApp serves an assembled app over httptest and returns its URL and
// the owners' key files.
func startApp(t *testing.T, n int, interval time.Duration) (*app, string, []string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Safe.Address = common.HexToAddress("0x5afe00000000000000000000000000000000cafe")
	cfg.Liveness.Interval = config.Duration(interval)
	cfg.Guardian.FallbackOwner = testFallback

	var keys []string
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		path := filepath.Join(dir, "owner"+string(rune('a'+i))+".key")
		require.NoError(t, crypto.SaveECDSA(path, key))
		keys = append(keys, path)
		cfg.Safe.Owners = append(cfg.Safe.Owners, crypto.PubkeyToAddress(key.PublicKey))
	}
	require.NoError(t, cfg.Validate())

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := assemble(cfg, db, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(a.server)
	t.Cleanup(srv.Close)
	return a, srv.URL, keys
}

func TestAssembleWarnsOwnerSetIsNotPersisted(t *testing.T) {
	cfg := config.Default()
	cfg.Safe.Address = common.HexToAddress("0x5afe00000000000000000000000000000000cafe")
	cfg.Guardian.FallbackOwner = testFallback
	for i := 0; i < 3; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		cfg.Safe.Owners = append(cfg.Safe.Owners, crypto.PubkeyToAddress(key.PublicKey))
	}
	require.NoError(t, cfg.Validate())

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var logs bytes.Buffer
	_, err = assemble(cfg, db, zerolog.New(&logs))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "do not survive a restart")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	removeInactive, refreshKey, keygenOut = false, "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "vigil "))
}

func TestThresholdCommand(t *testing.T) {
	out, err := run(t, "threshold", "20")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)

	_, err = run(t, "threshold", "-3")
	assert.Error(t, err)
	_, err = run(t, "threshold", "9223372036854775807")
	assert.Error(t, err)
}

func TestKeygenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner.key")
	out, err := run(t, "keygen", "--out", path)
	require.NoError(t, err)

	key, err := crypto.LoadECDSA(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex()+"\n", out)

	_, err = run(t, "keygen", "--out", path)
	assert.Error(t, err, "refuses to overwrite")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStatusAndRefresh(t *testing.T) {
	a, url, keys := startApp(t, 3, time.Hour)

	out, err := run(t, "status", "--url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "threshold 3 of 3")
	for _, o := range a.wallet.GetOwners() {
		assert.Contains(t, out, o.Hex())
	}

	out, err = run(t, "refresh", "--url", url, "--key", keys[0])
	require.NoError(t, err)
	assert.Contains(t, out, "refreshed at")
	assert.NotContains(t, out, "not an owner")
}

func TestRemoveCommand(t *testing.T) {
	a, url, _ := startApp(t, 4, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	owners := a.wallet.GetOwners()

	out, err := run(t, "plan", "--url", url, owners[1].Hex())
	require.NoError(t, err)
	assert.Equal(t, owners[1].Hex()+" after "+owners[0].Hex()+"\n", out)

	out, err = run(t, "remove", "--url", url, owners[1].Hex(), owners[2].Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "2 remain, threshold 2")
	assert.Len(t, a.wallet.GetOwners(), 2)

	_, err = run(t, "remove", "--url", url, "--inactive", owners[0].Hex())
	assert.Error(t, err)

	_, err = run(t, "remove", "--url", url, "not-an-address")
	assert.Error(t, err)
}

func TestRemoveInactiveCollapsesToFallback(t *testing.T) {
	a, url, _ := startApp(t, 3, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	out, err := run(t, "remove", "--url", url, "--inactive")
	require.NoError(t, err)
	assert.Contains(t, out, testFallback.Hex())
	assert.Equal(t, []common.Address{testFallback}, a.wallet.GetOwners())
	assert.Equal(t, 1, a.wallet.GetThreshold())
}
