package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"xp-ledger/internal/api"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/presenter"
	"xp-ledger/internal/service"

	"connectrpc.com/connect"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const LedgerServiceName = "xpledger.v1.LedgerService"

const (
	GetLedgerProcedure  = "/" + LedgerServiceName + "/GetLedger"
	RefreshProcedure    = "/" + LedgerServiceName + "/Refresh"
	SaveConfigProcedure = "/" + LedgerServiceName + "/SaveConfig"
	MarkPaidProcedure   = "/" + LedgerServiceName + "/MarkPaid"
)

type GetLedgerRequest struct{}

type RefreshRequest struct{}

type SaveConfigRequest struct {
	ID    domain.PlayerID `json:"id"`
	Key   string          `json:"key"`
	Price decimal.Decimal `json:"price"`
}

type MarkPaidRequest struct {
	SnapshotID  string            `json:"snapshot_id"`
	AttackerIDs []domain.PlayerID `json:"attacker_ids"`
}

type LedgerResponse struct {
	State    service.State     `json:"state"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	CanPay   bool              `json:"can_pay"`
	Snapshot *service.Snapshot `json:"snapshot"`
}

// JSONCodec carries the plain request and response structs over connect in
// place of generated protobuf messages. It replaces connect's "json" codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (s *LedgerServer) rpcHandler() (string, http.Handler) {
	opts := []connect.HandlerOption{connect.WithCodec(JSONCodec{})}

	getLedger := connect.NewUnaryHandler(GetLedgerProcedure, s.GetLedger, opts...)
	refresh := connect.NewUnaryHandler(RefreshProcedure, s.Refresh, opts...)
	saveConfig := connect.NewUnaryHandler(SaveConfigProcedure, s.SaveConfig, opts...)
	markPaid := connect.NewUnaryHandler(MarkPaidProcedure, s.MarkPaid, opts...)

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetLedgerProcedure:
			getLedger.ServeHTTP(w, r)
		case RefreshProcedure:
			refresh.ServeHTTP(w, r)
		case SaveConfigProcedure:
			saveConfig.ServeHTTP(w, r)
		case MarkPaidProcedure:
			markPaid.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GetLedger returns the current snapshot with the last pipeline error, if
// any, on the status line.
func (s *LedgerServer) GetLedger(ctx context.Context, req *connect.Request[GetLedgerRequest]) (*connect.Response[LedgerResponse], error) {
	return connect.NewResponse(s.ledgerResponse(s.svc.Current(), s.svc.LastError())), nil
}

func (s *LedgerServer) Refresh(ctx context.Context, req *connect.Request[RefreshRequest]) (*connect.Response[LedgerResponse], error) {
	snap, err := s.svc.Refresh(ctx)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}
	return connect.NewResponse(s.ledgerResponse(snap, nil)), nil
}

func (s *LedgerServer) SaveConfig(ctx context.Context, req *connect.Request[SaveConfigRequest]) (*connect.Response[LedgerResponse], error) {
	cfg := domain.Config{
		ID:    req.Msg.ID,
		Key:   strings.TrimSpace(req.Msg.Key),
		Price: req.Msg.Price,
	}
	snap, err := s.svc.SaveConfig(ctx, cfg)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}
	return connect.NewResponse(s.ledgerResponse(snap, nil)), nil
}

func (s *LedgerServer) MarkPaid(ctx context.Context, req *connect.Request[MarkPaidRequest]) (*connect.Response[LedgerResponse], error) {
	snap, err := s.svc.MarkPaid(ctx, req.Msg.SnapshotID, req.Msg.AttackerIDs)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}
	return connect.NewResponse(s.ledgerResponse(snap, nil)), nil
}

func (s *LedgerServer) ledgerResponse(snap *service.Snapshot, err error) *LedgerResponse {
	resp := &LedgerResponse{
		State:    s.svc.State(),
		Status:   presenter.StatusLine(resultOf(snap), err),
		CanPay:   s.svc.CanPay(snapshotID(snap)),
		Snapshot: snap,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, service.ErrRefreshInProgress), errors.Is(err, service.ErrStaleSnapshot):
		return connect.CodeAborted
	case errors.Is(err, service.ErrUnknownAttacker), errors.Is(err, domain.ErrInvalidConfig):
		return connect.CodeInvalidArgument
	case api.IsTransportError(err), api.IsAPIError(err):
		return connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	}
	return connect.CodeInternal
}
