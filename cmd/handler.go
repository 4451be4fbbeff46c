package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/RyanHill92/canvass/internal/apperr"
	"github.com/RyanHill92/canvass/internal/config"
	"github.com/RyanHill92/canvass/internal/consumer"
	"github.com/RyanHill92/canvass/internal/extract"
	"github.com/RyanHill92/canvass/internal/household"
	"github.com/RyanHill92/canvass/internal/logger"
	"github.com/RyanHill92/canvass/internal/metrics"
	"github.com/RyanHill92/canvass/internal/proximity"
)

const sessionHeader = "X-Session-ID"

// pinger is a dependency the health report checks.
type pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	fetcher  consumer.Fetcher
	explorer *household.Explorer
	consumer config.ConsumerConfig
	metrics  *metrics.Metrics
	checks   map[string]pinger
}

// HealthReport offers a deep look into the intricacies of app health.
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// ErrorResponse reports an error.
type ErrorResponse struct {
	Message string     `json:"error"`
	Debug   *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo tells the operator how many records the vendor returned when the
// target could not be confirmed.
type DebugInfo struct {
	FoundCount int `json:"foundCount"`
}

// LookupRequest is the body of a nearest-houses lookup.
type LookupRequest struct {
	HouseNumber string `json:"houseNumber"`
	Street      string `json:"street"`
	Zip         string `json:"zip"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	SortOrder   string `json:"sortOrder,omitempty"`
	FilterType  string `json:"filterType,omitempty"`
}

// LookupResponse is a confirmed target and its ranked neighbors.
type LookupResponse struct {
	ValidatedAddress string               `json:"validatedAddress"`
	ZipPlus4         string               `json:"zipPlus4"`
	Neighbors        []proximity.Neighbor `json:"neighbors"`
	SessionID        string               `json:"sessionId,omitempty"`
}

// ListingResponse is the explorer's household grid.
type ListingResponse struct {
	SessionID  string                `json:"sessionId"`
	TotalCount string                `json:"totalCount"`
	Households []household.Household `json:"households"`
}

// ReportHealth pings the optional backing services.
func (h *handler) ReportHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	report := HealthReport{Status: "so healthy right now!"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		report.Components = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.FromContext(ctx).Warn("health check failed", "component", name, "error", err)
			report.Components[name] = "down"
			report.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		report.Components[name] = "up"
	}
	sendJSONStatus(w, report, status)
}

// NearestHouses confirms the searched address with the vendor and returns its
// ranked neighbors.
func (h *handler) NearestHouses(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := logger.FromContext(ctx)

	var body LookupRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		log.Debug("bad lookup body", "error", err)
		sendError(w, req, apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest, "error decoding request body as lookup"))
		return
	}

	q := proximity.AddressQuery{
		HouseNumber: strings.TrimSpace(body.HouseNumber),
		Street:      strings.TrimSpace(body.Street),
		Zip:         strings.TrimSpace(body.Zip),
		City:        body.City,
		State:       body.State,
		Sort:        proximity.ParseSortOrder(body.SortOrder),
		Parity:      proximity.ParseParity(body.FilterType),
	}
	if err := q.Validate(); err != nil {
		sendError(w, req, err)
		return
	}

	var session *household.Session
	if id := req.Header.Get(sessionHeader); id != "" {
		session = h.explorer.Open(id)
		if err := session.BeginSearch(); err != nil {
			sendError(w, req, err)
			return
		}
		defer session.EndSearch()
		defer h.explorer.Abandon(session)
	}

	text, err := h.fetcher.Fetch(ctx, consumer.Query{
		Zip:         q.Zip,
		Street:      q.Street,
		HouseNumber: q.HouseNumber,
		Records:     h.consumer.LookupRecords,
		Columns:     h.consumer.Columns,
	})
	if err != nil {
		h.metrics.LookupsTotal.WithLabelValues("error").Inc()
		sendError(w, req, err)
		return
	}

	extracted := extract.Records(text)
	if extracted.Discarded > 0 {
		log.Debug("discarded consumer records without usable geography", "discarded", extracted.Discarded)
	}

	res, err := proximity.Rank(q, extracted.Records)
	var notFound *proximity.TargetNotFoundError
	if errors.As(err, &notFound) {
		h.metrics.LookupsTotal.WithLabelValues("target_not_found").Inc()
		log.Info("target not confirmed", "house_number", q.HouseNumber, "zip", q.Zip, "records", notFound.FoundCount)
		sendErrorResponse(w, http.StatusNotFound, ErrorResponse{
			Message: "Target address not found in Consumer records",
			Debug:   &DebugInfo{FoundCount: notFound.FoundCount},
		})
		return
	}
	if err != nil {
		h.metrics.LookupsTotal.WithLabelValues("error").Inc()
		sendError(w, req, err)
		return
	}
	h.metrics.LookupsTotal.WithLabelValues("found").Inc()
	h.metrics.NeighborsReturned.Observe(float64(len(res.Neighbors)))

	resp := LookupResponse{
		ValidatedAddress: res.ValidatedAddress,
		ZipPlus4:         res.ZipPlus4,
		Neighbors:        res.Neighbors,
	}
	if session != nil {
		if err := h.explorer.Seed(ctx, session, household.FromNeighbors(q.Zip, res.Neighbors), strconv.Itoa(res.RecordsSeen)); err != nil {
			sendError(w, req, err)
			return
		}
		resp.SessionID = session.ID
	}

	log.Info("lookup complete",
		"zip", q.Zip,
		"sort", q.Sort.String(),
		"filter", q.Parity.String(),
		"neighbors", len(res.Neighbors),
	)
	sendJSON(w, resp)
}

// ListHouseholds searches the vendor directly and seeds an explorer session
// with every record returned.
func (h *handler) ListHouseholds(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	params := req.URL.Query()

	zip := strings.TrimSpace(params.Get("zip"))
	if zip == "" {
		sendError(w, req, apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest, "zip is required"))
		return
	}

	records := h.consumer.ListRecords
	if v := strings.TrimSpace(params.Get("records")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sendError(w, req, apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest, "records must be a positive integer"))
			return
		}
		records = n
	}

	sessionID := params.Get("sessionId")
	if sessionID == "" {
		sessionID = req.Header.Get(sessionHeader)
	}
	session := h.explorer.Open(sessionID)
	if err := session.BeginSearch(); err != nil {
		sendError(w, req, err)
		return
	}
	defer session.EndSearch()
	defer h.explorer.Abandon(session)

	hno := strings.TrimSpace(params.Get("hno"))
	text, err := h.fetcher.Fetch(ctx, consumer.Query{
		Zip:         zip,
		Street:      strings.TrimSpace(params.Get("street")),
		HouseNumber: hno,
		Records:     records,
	})
	if err != nil {
		sendError(w, req, err)
		return
	}

	households := household.FromBlocks(text, zip, hno)
	if err := h.explorer.Seed(ctx, session, households, extract.TotalCount(text)); err != nil {
		sendError(w, req, err)
		return
	}

	sendJSON(w, ListingResponse{
		SessionID:  session.ID,
		TotalCount: session.TotalCount(),
		Households: session.Households(),
	})
}

// GetSessionHouseholds returns the current grid of a session.
func (h *handler) GetSessionHouseholds(w http.ResponseWriter, req *http.Request) {
	session, err := h.explorer.Session(mux.Vars(req)["sessionID"])
	if err != nil {
		sendError(w, req, err)
		return
	}

	sendJSON(w, ListingResponse{
		SessionID:  session.ID,
		TotalCount: session.TotalCount(),
		Households: session.Households(),
	})
}

// SaveAnnotation copies the edit form onto the matching household.
func (h *handler) SaveAnnotation(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	session, err := h.explorer.Session(vars["sessionID"])
	if err != nil {
		sendError(w, req, err)
		return
	}

	var a household.Annotation
	if err := json.NewDecoder(req.Body).Decode(&a); err != nil {
		sendError(w, req, apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest, "error decoding request body as annotation"))
		return
	}

	saved, err := h.explorer.Save(req.Context(), session, vars["key"], a)
	if err != nil {
		sendError(w, req, err)
		return
	}

	sendJSON(w, saved)
}

// DiscardSession drops a session and its annotations.
func (h *handler) DiscardSession(w http.ResponseWriter, req *http.Request) {
	if err := h.explorer.Discard(req.Context(), mux.Vars(req)["sessionID"]); err != nil {
		sendError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// invalidator is implemented by fetchers that keep a cache.
type invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// InvalidateCache clears cached vendor responses.
func (h *handler) InvalidateCache(w http.ResponseWriter, req *http.Request) {
	cache, ok := h.fetcher.(invalidator)
	if !ok {
		sendError(w, req, apperr.New(apperr.ErrNotFound, http.StatusNotFound, "no cache configured"))
		return
	}
	deleted, err := cache.Invalidate(req.Context())
	if err != nil {
		sendError(w, req, err)
		return
	}
	sendJSON(w, map[string]int64{"keysDeleted": deleted})
}

func sendError(w http.ResponseWriter, req *http.Request, err error) {
	status := apperr.HTTPStatusCode(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(req.Context()).Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
	}
	sendErrorResponse(w, status, ErrorResponse{Message: apperr.PublicMessage(err)})
}

func sendErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	sendJSONStatus(w, resp, status)
}

func sendJSON(w http.ResponseWriter, object interface{}) {
	sendJSONStatus(w, object, http.StatusOK)
}

func sendJSONStatus(w http.ResponseWriter, object interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(object)
}
