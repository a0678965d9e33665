package server

import (
	"errors"
	"net/http"

	"github.com/vitalvas/signgate/internal/api"
	"github.com/vitalvas/signgate/internal/campaign"
	"github.com/vitalvas/signgate/internal/middleware"
	"github.com/vitalvas/signgate/querysig"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	api.ResponseJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	api.WriteSuccess(w, querysig.UnixMilli(s.now()))
}

func (s *Server) handleTaskCompletion(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	wallet, err := campaign.ParseWallet(query.Get("walletAddress"))
	if err != nil {
		api.WriteError(w, api.InvalidArgument("%v", err))
		return
	}

	tasks, err := campaign.ParseTasks(query.Get("task"))
	if err != nil {
		api.WriteError(w, api.InvalidArgument("%v", err))
		return
	}

	result, err := s.campaign.Completion(r.Context(), wallet, tasks)
	if err != nil {
		s.log.Warn("task completion failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"wallet", wallet.Hex(),
			"error", err)

		if errors.Is(err, campaign.ErrSourceUnavailable) {
			api.WriteError(w, api.ErrSystemBusy.Wrap(err))
			return
		}

		api.WriteError(w, api.ErrInternal.Wrap(err))

		return
	}

	api.WriteSuccess(w, result)
}
