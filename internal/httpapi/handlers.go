package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"departure-board/internal/board"
	"departure-board/internal/departures"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/logger"
)

// Service is the part of the board manager the API needs.
type Service interface {
	Compute(q board.Query) (*board.Board, error)
	Board(name string) (*board.Board, bool)
	Boards() []board.Summary
}

// NewRouter registers the API routes. metrics may be nil.
func NewRouter(svc Service, metrics http.Handler, log *logrus.Logger) *mux.Router {
	h := handlers{svc: svc, log: log}
	r := mux.NewRouter()

	var out io.Writer = io.Discard
	if log != nil {
		out = log.Writer()
	}
	l := logger.New(logger.Options{
		Prefix:             "boardd",
		Out:                out,
		IgnoredRequestURIs: []string{"/healthz", "/metrics"},
	})
	r.Use(l.Handler)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/boards", h.listBoards).Methods(http.MethodGet)
	r.HandleFunc("/boards/{name}", h.getBoard).Methods(http.MethodGet)
	r.HandleFunc("/stations/{station}/departures", h.station(departures.ModeDeparture)).Methods(http.MethodGet)
	r.HandleFunc("/stations/{station}/arrivals", h.station(departures.ModeArrival)).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

type handlers struct {
	svc Service
	log *logrus.Logger
}

func (h handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h handlers) listBoards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Boards())
}

func (h handlers) getBoard(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	b, ok := h.svc.Board(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("board %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h handlers) station(mode departures.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(mux.Vars(r)["station"], mode, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b, err := h.svc.Compute(q)
		switch {
		case errors.Is(err, board.ErrNotLoaded):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			if h.log != nil {
				h.log.WithError(err).WithField("station", q.Station).Error("compute board failed")
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func parseQuery(station string, mode departures.Mode, r *http.Request) (board.Query, error) {
	q := board.Query{
		Station:    departures.StationID(station),
		Mode:       mode,
		Passengers: true,
		Freight:    true,
	}
	params := r.URL.Query()

	var names []string
	if v := params.Get("types"); v != "" {
		names = strings.Split(v, ",")
	}
	types, err := departures.ParseVehicleTypes(names)
	if err != nil {
		return q, err
	}
	q.Types = types

	for key, dst := range map[string]*bool{"via": &q.Via, "pax": &q.Passengers, "freight": &q.Freight} {
		v := params.Get(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %q", key, v)
		}
		*dst = b
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
