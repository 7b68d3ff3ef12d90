package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/safe"
	"github.com/lazypower/vigil/internal/safe/safetest"
	"github.com/lazypower/vigil/internal/server"
	"github.com/lazypower/vigil/internal/store"
)

var fallback = common.HexToAddress("0x00000000000000000000000000000000fa11bac4")

type stack struct {
	client *Client
	owners []safetest.Owner
	wallet *safe.Safe
}

func newStack(t *testing.T, n, minOwners int, interval time.Duration) *stack {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	owners := safetest.Owners(t, n)
	w := safetest.NewWallet(t, owners, guardian.Threshold(n))
	tr, err := liveness.New(liveness.Config{Wallet: w.Address(), Records: db, Events: db, Logger: zerolog.Nop()})
	require.NoError(t, err)
	w.SetGuard(tr.Address(), tr)
	require.NoError(t, tr.SeedOwners(w.GetOwners()))

	g, err := guardian.New(w, tr, guardian.Config{LivenessInterval: interval, MinOwners: minOwners, FallbackOwner: fallback})
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(server.Deps{DB: db, Wallet: w, Tracker: tr, Guardian: g, Logger: zerolog.Nop()}, "test"))
	t.Cleanup(srv.Close)
	return &stack{client: New(srv.URL), owners: owners, wallet: w}
}

func TestNewURLFallback(t *testing.T) {
	t.Setenv(EnvURL, "")
	assert.Equal(t, DefaultServerURL, New("").URL())

	t.Setenv(EnvURL, "http://vigil.internal:9000/")
	assert.Equal(t, "http://vigil.internal:9000", New("").URL())
	assert.Equal(t, "http://other:1", New("http://other:1").URL())
}

func TestReadEndpoints(t *testing.T) {
	s := newStack(t, 4, 2, time.Hour)
	c := s.client

	assert.True(t, c.Healthy())

	info, err := c.Safe()
	require.NoError(t, err)
	assert.Equal(t, safetest.Addresses(s.owners), info.Owners)
	assert.Equal(t, 3, info.Threshold)

	g, err := c.Guardian()
	require.NoError(t, err)
	assert.Equal(t, fallback, g.FallbackOwner)
	assert.Equal(t, 2, g.MinOwners)

	th, err := c.Threshold(17)
	require.NoError(t, err)
	assert.Equal(t, 13, th)

	inactive, err := c.Inactive()
	require.NoError(t, err)
	assert.Empty(t, inactive)

	la, err := c.LastActive(s.owners[0].Address)
	require.NoError(t, err)
	assert.True(t, la.IsOwner)
	assert.NotNil(t, la.LastActive)
}

func TestRefreshAndEvents(t *testing.T) {
	s := newStack(t, 2, 1, time.Hour)
	o := s.owners[1]
	issued := time.Now().Unix()
	digest := liveness.RefreshDigest(s.wallet.Address(), o.Address, issued)
	sig, err := crypto.Sign(digest[:], o.Key)
	require.NoError(t, err)

	resp, err := s.client.Refresh(server.RefreshRequest{Address: o.Address, IssuedAt: issued, Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, o.Address, resp.Address)

	events, err := s.client.Events(5)
	require.NoError(t, err)
	require.NotEmpty(t, events.Events)
	assert.Equal(t, liveness.EventRefreshed, events.Events[0].Kind)

	_, err = s.client.Refresh(server.RefreshRequest{Address: s.owners[0].Address, IssuedAt: issued, Signature: sig})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "BadRefreshProof", apiErr.Kind)
}

func TestExecTransaction(t *testing.T) {
	s := newStack(t, 3, 1, time.Hour)
	tx := safe.Transaction{To: common.HexToAddress("0xbeef")}
	sigs := safetest.Sign(t, s.wallet, tx, s.owners...)

	resp, err := s.client.ExecTransaction(server.TransactionRequest{Transaction: tx, Signatures: sigs})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), resp.Nonce)
	assert.Equal(t, uint64(1), s.wallet.Nonce())
}

func TestPlanAndRemove(t *testing.T) {
	// A nanosecond interval lapses before the first request arrives.
	s := newStack(t, 4, 2, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	targets := safetest.Addresses(s.owners[2:])

	hints, err := s.client.Plan(targets)
	require.NoError(t, err)
	require.Len(t, hints, 2)

	resp, err := s.client.Remove(hints, targets)
	require.NoError(t, err)
	assert.Equal(t, safetest.Addresses(s.owners[:2]), resp.Owners)
	assert.Equal(t, 2, resp.Threshold)

	_, err = s.client.Remove(hints, targets[:1])
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ArityMismatch", apiErr.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway sad", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Safe()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "gateway sad", apiErr.Message)
	assert.Empty(t, apiErr.Kind)
	assert.False(t, New(srv.URL).Healthy())
}
