package simulator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/utils"
)

// Lifecycle calls carry no identity beyond the shared token, so the
// simulator attributes them all to one operator name.
const simOperator = "operator"

func (s *Simulator) handleHealthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, s.health())
}

func (s *Simulator) handleListActive(w http.ResponseWriter, r *http.Request) {
	severity := r.URL.Query().Get("severity")
	if severity != "" {
		if _, err := alert.ParseSeverity(severity); err != nil {
			utils.WriteError(w, apperrors.BadRequest(err.Error()))
			return
		}
	}

	var acknowledged *bool
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.WriteError(w, apperrors.BadRequest("acknowledged must be a boolean"))
			return
		}
		acknowledged = &v
	}

	utils.WriteJSON(w, http.StatusOK, s.ListActive(severity, acknowledged))
}

func (s *Simulator) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	dto, err := s.Acknowledge(chi.URLParam(r, "id"), simOperator)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dto)
}

type resolveBody struct {
	ResolutionNotes string `json:"resolution_notes"`
}

func (s *Simulator) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	dto, err := s.Resolve(chi.URLParam(r, "id"), body.ResolutionNotes)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dto)
}

// handleFire injects an alert. Everything except severity and rule_name
// may be omitted; the simulator fills in IDs and timestamps.
func (s *Simulator) handleFire(w http.ResponseWriter, r *http.Request) {
	var d alert.DTO
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		utils.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	dto, err := s.Fire(d)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, dto)
}

// handleDisconnect severs every push connection so clients exercise
// their reconnect path.
func (s *Simulator) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	dropped := s.hub.DropAll()
	s.log.Infof("Dropped %d push clients on request", dropped)
	utils.WriteJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

func writeErr(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteErrorMessage(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "unexpected error")
}
