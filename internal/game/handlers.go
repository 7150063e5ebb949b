package game

import (
	"net/http"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Handler exposes the rewards game.
type Handler struct {
	Svc *Service
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	sess, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(Outcome{Session: sess})})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	h.respond(w)(h.Svc.Start(r.Context(), userID))
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Correct *bool `json:"correct"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if payload.Correct == nil {
		common.WriteError(w, common.Validation("", "correct is required"))
		return
	}
	h.respond(w)(h.Svc.Answer(r.Context(), userID, *payload.Correct))
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	h.respond(w)(h.Svc.Withdraw(r.Context(), userID))
}

func (h *Handler) respond(w http.ResponseWriter) func(Outcome, error) {
	return func(out Outcome, err error) {
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": h.view(out)})
	}
}

func (h *Handler) view(out Outcome) map[string]any {
	s := out.Session
	v := map[string]any{
		"state":    s.State,
		"level":    s.Level,
		"earnings": pricing.Format(s.Earnings),
		"paid":     pricing.Format(out.Paid),
	}
	if ladder := h.Svc.Rules.Ladder; s.State == Playing && s.Level < len(ladder) {
		v["nextPrize"] = pricing.Format(ladder[s.Level])
	}
	if !s.LockedUntil.IsZero() && s.State != Idle && s.State != Playing {
		v["lockedUntil"] = s.LockedUntil
	}
	return v
}
