package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hichang4u/fxtrader/internal/ledger"
	"github.com/hichang4u/fxtrader/internal/models"
	"github.com/hichang4u/fxtrader/internal/policy"
	"github.com/hichang4u/fxtrader/internal/rates"
	"github.com/hichang4u/fxtrader/internal/trading"
)

// APIHandler holds dependencies for the API endpoints. Handlers only decode,
// delegate and encode; every business rule lives in the trading package.
type APIHandler struct {
	log      *zap.Logger
	planner  *trading.Planner
	valuator *trading.Valuator
	policies *policy.Store
	ledger   *ledger.Ledger
	monitor  *rates.Monitor
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, planner *trading.Planner, valuator *trading.Valuator,
	policies *policy.Store, l *ledger.Ledger, monitor *rates.Monitor) *APIHandler {
	return &APIHandler{
		log:      log,
		planner:  planner,
		valuator: valuator,
		policies: policies,
		ledger:   l,
		monitor:  monitor,
	}
}

// Register wires every endpoint onto the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trades", h.ListTrades)
	mux.HandleFunc("GET /api/planned", h.ListPlanned)
	mux.HandleFunc("POST /api/buy", h.CreateBuy)
	mux.HandleFunc("POST /api/sell", h.CreateSell)
	mux.HandleFunc("POST /api/stoploss", h.CreateStopLoss)
	mux.HandleFunc("PUT /api/trades/{id}", h.UpdateTrade)
	mux.HandleFunc("DELETE /api/trades/{id}", h.DeleteTrade)
	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings/{currency}", h.PutSettings)
	mux.HandleFunc("GET /api/summary", h.Summary)
}

func (h *APIHandler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError maps the trading error taxonomy onto HTTP statuses.
func (h *APIHandler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trading.ErrTradeNotFound), errors.Is(err, trading.ErrBuyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, trading.ErrHasRelatedSells):
		status = http.StatusConflict
	case errors.Is(err, trading.ErrInvalidCurrency), errors.Is(err, trading.ErrNotEditable):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Error(err))
	}
	h.respond(w, status, map[string]string{"error": err.Error()})
}

// ListTrades returns the ledger, optionally the family of one buy via
// ?related=BUY1, or only executed buys and sells via ?executed=true.
func (h *APIHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	var err error

	if related := r.URL.Query().Get("related"); related != "" {
		trades, err = h.ledger.Family(related)
	} else if r.URL.Query().Get("executed") == "true" {
		trades, err = h.ledger.ByTypes("", models.TypeBuy, models.TypeSell)
	} else {
		trades, err = h.ledger.All()
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, trades)
}

// ListPlanned returns the planned sell/stop-loss board, optionally filtered
// to one buy.
func (h *APIHandler) ListPlanned(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.Planned()
	if err != nil {
		h.respondError(w, err)
		return
	}
	if related := r.URL.Query().Get("related"); related != "" {
		filtered := trades[:0]
		for _, t := range trades {
			if t.RelatedID == related {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	h.respond(w, http.StatusOK, trades)
}

type buyRequest struct {
	KRWAmount float64         `json:"krw_amount"`
	Rate      float64         `json:"rate"`
	Currency  models.Currency `json:"currency"`
	Date      string          `json:"date"`
	Note      string          `json:"note"`
}

func (h *APIHandler) CreateBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	buy, err := h.planner.CreateBuyOrder(req.KRWAmount, req.Rate, req.Currency, req.Date, req.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, buy)
}

type sellRequest struct {
	BuyID string  `json:"buy_id"`
	Rate  float64 `json:"rate"`
	Ratio float64 `json:"ratio"`
	Date  string  `json:"date"`
	Note  string  `json:"note"`
}

func (h *APIHandler) CreateSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	sell, err := h.planner.CreateSellOrder(req.BuyID, req.Rate, req.Ratio, req.Date, req.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, sell)
}

type stopLossRequest struct {
	BuyID string  `json:"buy_id"`
	Rate  float64 `json:"rate"`
	Note  string  `json:"note"`
}

func (h *APIHandler) CreateStopLoss(w http.ResponseWriter, r *http.Request) {
	var req stopLossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	stopLoss, err := h.planner.CreateStopLoss(req.BuyID, req.Rate, req.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, stopLoss)
}

type updateRequest struct {
	Date      string  `json:"date"`
	Rate      float64 `json:"rate"`
	KRWAmount float64 `json:"krw_amount"`
	Note      string  `json:"note"`
}

func (h *APIHandler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	trade, err := h.planner.UpdateTrade(r.PathValue("id"), req.Date, req.Rate, req.KRWAmount, req.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, trade)
}

func (h *APIHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.DeleteTrade(r.PathValue("id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.policies.All()
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, settings)
}

func (h *APIHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.CurrencySettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	settings.Currency = models.Currency(r.PathValue("currency"))
	if !settings.Currency.Valid() {
		h.respondError(w, trading.ErrInvalidCurrency)
		return
	}
	if err := h.policies.Put(&settings); err != nil {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.respond(w, http.StatusOK, settings)
}

// currencySummary is one rate card: live quote, position and valuation.
type currencySummary struct {
	Quote    *rates.Quote        `json:"quote,omitempty"`
	Holding  trading.Holding     `json:"holding"`
	Value    trading.ValueReport `json:"value"`
	Realized float64             `json:"realized_profit"`
}

// Summary returns the dashboard aggregates for every currency. A missing
// quote degrades the valuation to zero instead of failing the request.
func (h *APIHandler) Summary(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	summaries := make(map[models.Currency]currencySummary, len(models.Currencies))
	for _, currency := range models.Currencies {
		holding, err := h.valuator.HoldingAmount(currency)
		if err != nil {
			h.respondError(w, err)
			return
		}
		realized, err := h.valuator.CurrencyProfit(currency)
		if err != nil {
			h.respondError(w, err)
			return
		}

		quote := h.monitor.CurrentRate(r.Context(), currency, refresh)
		var currentRate float64
		if quote != nil {
			currentRate = quote.CurrentRate
		}

		summaries[currency] = currencySummary{
			Quote:    quote,
			Holding:  holding,
			Value:    h.valuator.CurrentValue(currentRate, holding),
			Realized: realized,
		}
	}

	totalProfit, err := h.valuator.TotalProfit()
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{
		"currencies":   summaries,
		"total_profit": totalProfit,
	})
}
