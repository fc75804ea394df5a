package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"xp-ledger/internal/api"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/service"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcClients struct {
	getLedger  *connect.Client[GetLedgerRequest, LedgerResponse]
	refresh    *connect.Client[RefreshRequest, LedgerResponse]
	saveConfig *connect.Client[SaveConfigRequest, LedgerResponse]
	markPaid   *connect.Client[MarkPaidRequest, LedgerResponse]
}

func newRPCClients(t *testing.T, srv *LedgerServer) rpcClients {
	t.Helper()
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	opt := connect.WithCodec(JSONCodec{})
	return rpcClients{
		getLedger:  connect.NewClient[GetLedgerRequest, LedgerResponse](ts.Client(), ts.URL+GetLedgerProcedure, opt),
		refresh:    connect.NewClient[RefreshRequest, LedgerResponse](ts.Client(), ts.URL+RefreshProcedure, opt),
		saveConfig: connect.NewClient[SaveConfigRequest, LedgerResponse](ts.Client(), ts.URL+SaveConfigProcedure, opt),
		markPaid:   connect.NewClient[MarkPaidRequest, LedgerResponse](ts.Client(), ts.URL+MarkPaidProcedure, opt),
	}
}

func TestGetLedgerBeforeFirstBuild(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{encounters: bob(1)})
	c := newRPCClients(t, srv)

	res, err := c.getLedger.CallUnary(context.Background(), connect.NewRequest(&GetLedgerRequest{}))
	require.NoError(t, err)
	assert.Equal(t, service.StateIdle, res.Msg.State)
	assert.Nil(t, res.Msg.Snapshot)
	assert.False(t, res.Msg.CanPay)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
}

func TestRPCSaveConfigThenMarkPaid(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t, &stubFetcher{encounters: bob(3)})
	c := newRPCClients(t, srv)

	saved, err := c.saveConfig.CallUnary(ctx, connect.NewRequest(&SaveConfigRequest{
		ID:    1,
		Key:   " k ",
		Price: decimal.NewFromInt(500),
	}))
	require.NoError(t, err)
	require.NotNil(t, saved.Msg.Snapshot)
	assert.True(t, saved.Msg.CanPay)
	assert.Equal(t, "Processed 3 fights, 1 attackers.", saved.Msg.Status)
	require.Len(t, saved.Msg.Snapshot.Result.Rows, 1)
	assert.Equal(t, "1500", saved.Msg.Snapshot.Result.Rows[0].Balance.String())

	paid, err := c.markPaid.CallUnary(ctx, connect.NewRequest(&MarkPaidRequest{
		SnapshotID:  saved.Msg.Snapshot.ID,
		AttackerIDs: []domain.PlayerID{9},
	}))
	require.NoError(t, err)
	assert.True(t, paid.Msg.Snapshot.Result.Rows[0].Balance.IsZero())
	assert.Equal(t, "1500", paid.Msg.Snapshot.Result.Stats.Paid.String())

	// same token twice
	_, err = c.markPaid.CallUnary(ctx, connect.NewRequest(&MarkPaidRequest{
		SnapshotID:  saved.Msg.Snapshot.ID,
		AttackerIDs: []domain.PlayerID{9},
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))

	_, err = c.markPaid.CallUnary(ctx, connect.NewRequest(&MarkPaidRequest{
		SnapshotID:  paid.Msg.Snapshot.ID,
		AttackerIDs: []domain.PlayerID{77},
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRPCSaveConfigRejectsNegativePrice(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{})
	c := newRPCClients(t, srv)

	_, err := c.saveConfig.CallUnary(context.Background(), connect.NewRequest(&SaveConfigRequest{
		ID:    1,
		Key:   "k",
		Price: decimal.NewFromInt(-1),
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRPCRefreshAPIErrorKeepsTable(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{encounters: bob(2)}
	srv, _ := newTestServer(t, fetcher)
	c := newRPCClients(t, srv)

	_, err := c.saveConfig.CallUnary(ctx, connect.NewRequest(&SaveConfigRequest{ID: 1, Key: "k", Price: decimal.NewFromInt(10)}))
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.err = &api.APIError{Code: 2, Message: "Incorrect key"}
	fetcher.mu.Unlock()

	_, err = c.refresh.CallUnary(ctx, connect.NewRequest(&RefreshRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	assert.Contains(t, connectErr.Message(), "Incorrect key")

	res, err := c.getLedger.CallUnary(ctx, connect.NewRequest(&GetLedgerRequest{}))
	require.NoError(t, err)
	assert.Contains(t, res.Msg.Error, "Incorrect key")
	assert.True(t, strings.HasPrefix(res.Msg.Status, "Error: "))
	require.NotNil(t, res.Msg.Snapshot)
	assert.Len(t, res.Msg.Snapshot.Result.Rows, 1)

	page := get(t, srv.Routes(), "/").Body.String()
	assert.Contains(t, page, "Incorrect key")
	assert.Contains(t, page, "Bob")
}

func TestRPCUnknownProcedure(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/"+LedgerServiceName+"/Nope", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, connect.CodeAborted, codeFor(service.ErrRefreshInProgress))
	assert.Equal(t, connect.CodeAborted, codeFor(service.ErrStaleSnapshot))
	assert.Equal(t, connect.CodeInvalidArgument, codeFor(domain.ErrInvalidConfig))
	assert.Equal(t, connect.CodeUnavailable, codeFor(&api.TransportError{StatusCode: 500}))
	assert.Equal(t, connect.CodeDeadlineExceeded, codeFor(context.DeadlineExceeded))
	assert.Equal(t, connect.CodeInternal, codeFor(assert.AnError))
}
