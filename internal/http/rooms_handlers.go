package httpx

import (
	"net/http"

	"codecollab/internal/ws"
)

type RoomsAPI struct{ Hub *ws.Hub }

type rosterResponse struct {
	RoomID  string      `json:"roomId"`
	Clients []ws.Client `json:"clients"`
}

// Get returns the current roster of a room, empty if nobody is in it
func (a *RoomsAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, rosterResponse{RoomID: id, Clients: a.Hub.Members(id)})
}

type RunsAPI struct{ Runs RunLog }

// List returns the latest 50 proxy calls
func (a *RunsAPI) List(w http.ResponseWriter, r *http.Request) {
	runs, err := a.Runs.RecentRuns(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
