package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bridge/agent/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ApiService exposes the bridge to local UI surfaces.
type ApiService struct {
	server       *http.Server
	pair         models.BridgePair
	connection   *ConnectionManager
	guard        *NetworkGuard
	balances     *BalanceLoader
	orchestrator *TransactionOrchestrator
	events       *EventBroadcaster
	upgrader     websocket.Upgrader
	logger       *zap.SugaredLogger
}

func NewApiService(addr string, pair models.BridgePair, cm *ConnectionManager, guard *NetworkGuard, bl *BalanceLoader, orch *TransactionOrchestrator, events *EventBroadcaster, logger *zap.SugaredLogger) *ApiService {
	a := &ApiService{
		pair:         pair,
		connection:   cm,
		guard:        guard,
		balances:     bl,
		orchestrator: orch,
		events:       events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     localOrigin,
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", a.handleState)
	mux.HandleFunc("GET /network", a.handleNetwork)
	mux.HandleFunc("POST /connect", a.handleConnect)
	mux.HandleFunc("POST /disconnect", a.handleDisconnect)
	mux.HandleFunc("POST /network/ensure", a.handleEnsureChain)
	mux.HandleFunc("GET /balances", a.handleBalances)
	mux.HandleFunc("POST /approve", a.handleApprove)
	mux.HandleFunc("POST /bridge", a.handleBridge)
	mux.HandleFunc("GET /transfers/{hash}", a.handleTransfer)
	mux.HandleFunc("GET /events", a.handleEvents)

	a.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return a
}

func (a *ApiService) Handler() http.Handler {
	return a.server.Handler
}

func (a *ApiService) Start() error {
	return a.server.ListenAndServe()
}

func (a *ApiService) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type transferRequest struct {
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Destination string `json:"destination,omitempty"`
}

func (a *ApiService) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.connection.State())
}

func (a *ApiService) handleNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.pair)
}

func (a *ApiService) handleConnect(w http.ResponseWriter, r *http.Request) {
	st, err := a.connection.Connect(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *ApiService) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := a.connection.Disconnect(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.connection.State())
}

func (a *ApiService) handleEnsureChain(w http.ResponseWriter, r *http.Request) {
	if err := a.guard.EnsureChain(r.Context(), a.pair.EVM); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.connection.State())
}

func (a *ApiService) handleBalances(w http.ResponseWriter, r *http.Request) {
	tokens := a.pair.TokenAddresses()
	if q := strings.TrimSpace(r.URL.Query().Get("tokens")); q != "" {
		tokens = strings.Split(q, ",")
	}
	out, err := a.balances.LoadBalances(r.Context(), tokens)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *ApiService) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ValidateAmount(req.Amount); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.guard.EnsureChain(r.Context(), a.pair.EVM); err != nil {
		a.writeError(w, err)
		return
	}
	out, err := a.orchestrator.Approve(r.Context(), req.Token, req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (a *ApiService) handleBridge(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ValidateAmount(req.Amount); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.guard.EnsureChain(r.Context(), a.pair.EVM); err != nil {
		a.writeError(w, err)
		return
	}
	out, err := a.orchestrator.BridgeTokenToHathor(r.Context(), req.Token, req.Amount, req.Destination)
	if err != nil {
		a.writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if out.Status == models.OutcomeApprovalNeeded {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

func (a *ApiService) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ev, ok := a.events.Last(r.PathValue("hash"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown transaction"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

var errorStatuses = []struct {
	kind   error
	status int
}{
	{ErrInvalidAmount, http.StatusBadRequest},
	{ErrInvalidDestination, http.StatusBadRequest},
	{ErrProviderUnavailable, http.StatusServiceUnavailable},
	{ErrNotConnected, http.StatusPreconditionFailed},
	{ErrNetworkMismatch, http.StatusPreconditionFailed},
	{ErrConnectionRejected, http.StatusForbidden},
	{ErrCancelled, http.StatusConflict},
	{ErrAbandoned, http.StatusRequestTimeout},
	{ErrTransactionTimeout, http.StatusGatewayTimeout},
	{ErrApprovalFailed, http.StatusBadGateway},
	{ErrTransactionReverted, http.StatusBadGateway},
	{ErrUnknownProvider, http.StatusBadGateway},
}

func (a *ApiService) writeError(w http.ResponseWriter, err error) {
	var berr *BridgeError
	if !errors.As(err, &berr) {
		a.logger.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	for _, s := range errorStatuses {
		if errors.Is(berr.Kind, s.kind) {
			writeJSON(w, s.status, errorResponse{Error: berr.Message, Kind: s.kind.Error()})
			return
		}
	}
	writeJSON(w, http.StatusBadGateway, errorResponse{Error: berr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
