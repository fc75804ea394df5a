package server

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/ledger"
	"xp-ledger/internal/presenter"
	"xp-ledger/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type LedgerServer struct {
	svc    *service.LedgerService
	logger zerolog.Logger
	// page loads reuse a snapshot younger than this
	pageTTL time.Duration
}

func NewLedgerServer(svc *service.LedgerService, logger zerolog.Logger) *LedgerServer {
	return &LedgerServer{svc: svc, logger: logger, pageTTL: constants.PageRefreshTTL}
}

func (s *LedgerServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("POST /config", s.handleSaveConfig)
	mux.HandleFunc("POST /pay", s.handleMarkPaid)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	path, handler := s.rpcHandler()
	mux.Handle(path, handler)
	return mux
}

func (s *LedgerServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.stale(s.svc.Current()) {
		if _, err := s.svc.Refresh(r.Context()); err != nil && !errors.Is(err, service.ErrRefreshInProgress) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("page refresh failed")
		}
	}
	s.renderPage(w, r, http.StatusOK, nil)
}

func (s *LedgerServer) stale(snap *service.Snapshot) bool {
	return snap == nil || time.Since(snap.BuiltAt) >= s.pageTTL
}

func (s *LedgerServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Refresh(r.Context()); err != nil {
		s.renderPage(w, r, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *LedgerServer) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, err)
		return
	}

	cfg, err := parseConfigForm(r)
	if err != nil {
		s.renderPage(w, r, http.StatusBadRequest, err)
		return
	}

	if _, err := s.svc.SaveConfig(r.Context(), cfg); err != nil {
		s.renderPage(w, r, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *LedgerServer) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, err)
		return
	}

	ids := make([]domain.PlayerID, 0, len(r.PostForm["attacker"]))
	for _, raw := range r.PostForm["attacker"] {
		id, err := domain.ParsePlayerID(strings.TrimSpace(raw))
		if err != nil {
			s.renderPage(w, r, http.StatusBadRequest, err)
			return
		}
		ids = append(ids, id)
	}

	if _, err := s.svc.MarkPaid(r.Context(), r.PostForm.Get("snapshot"), ids); err != nil {
		s.renderPage(w, r, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderPage shows the current snapshot with err, or the last pipeline
// error, on the status line.
func (s *LedgerServer) renderPage(w http.ResponseWriter, r *http.Request, status int, err error) {
	cfg, cfgErr := s.svc.LoadConfig(r.Context())
	if cfgErr != nil {
		zerolog.Ctx(r.Context()).Error().Err(cfgErr).Msg("failed to load config for page")
	}

	if err == nil {
		err = s.svc.LastError()
	}
	snap := s.svc.Current()

	// a snapshot already paid against only answers 409, so the form gets none
	id := snapshotID(snap)
	if !s.svc.CanPay(id) {
		id = ""
	}

	page := presenter.NewPage(cfg, id, resultOf(snap), err)
	if err == nil && s.svc.State() == service.StateFetching {
		page.Status = presenter.DownloadingMessage
		page.CanPay = false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := presenter.WritePage(w, page); err != nil {
		s.logger.Error().Err(err).Msg("failed to render page")
	}
}

func parseConfigForm(r *http.Request) (domain.Config, error) {
	id, err := domain.ParsePlayerID(strings.TrimSpace(r.PostForm.Get("id")))
	if err != nil {
		return domain.Config{}, err
	}
	price := decimal.Zero
	if raw := strings.TrimSpace(r.PostForm.Get("price")); raw != "" {
		price, err = decimal.NewFromString(raw)
		if err != nil {
			return domain.Config{}, errors.New("price must be a number")
		}
	}
	return domain.Config{
		ID:    id,
		Key:   strings.TrimSpace(r.PostForm.Get("key")),
		Price: price,
	}, nil
}

// statusFor maps pipeline errors for the HTML forms, following the codes the
// RPC surface reports.
func statusFor(err error) int {
	switch codeFor(err) {
	case connect.CodeAborted:
		return http.StatusConflict
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnavailable:
		return http.StatusBadGateway
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func resultOf(snap *service.Snapshot) *ledger.Result {
	if snap == nil {
		return nil
	}
	return &snap.Result
}

func snapshotID(snap *service.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.ID
}
