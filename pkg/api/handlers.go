package api

import (
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/pkg/router"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
)

func (s *Server) handleGetEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.opts.Backend.GetEntities(r.PathValue("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entities == nil {
		entities = []string{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.opts.Backend.GetUserToGroupMappings(r.PathValue("user"), boolQuery(r, "includeIndirect"))
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGroupUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.opts.Backend.GetGroupToUserMappings(r.PathValue("group"), boolQuery(r, "includeIndirect"))
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserComponents(w http.ResponseWriter, r *http.Request) {
	access, err := s.opts.Backend.GetUserToComponentMappings(r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeComponentAccess(w, access)
}

func (s *Server) handleGroupComponents(w http.ResponseWriter, r *http.Request) {
	access, err := s.opts.Backend.GetGroupToComponentMappings(r.PathValue("group"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeComponentAccess(w, access)
}

func (s *Server) handleUserEntities(w http.ResponseWriter, r *http.Request) {
	refs, err := s.opts.Backend.GetUserToEntityMappings(r.PathValue("user"), r.PathValue("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeEntityRefs(w, refs)
}

func (s *Server) handleGroupEntities(w http.ResponseWriter, r *http.Request) {
	refs, err := s.opts.Backend.GetGroupToEntityMappings(r.PathValue("group"), r.PathValue("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeEntityRefs(w, refs)
}

func (s *Server) handleEntityUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.opts.Backend.GetEntityToUserMappings(
		r.PathValue("type"), r.PathValue("entity"), boolQuery(r, "includeIndirect"))
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserAccessibleComponents(w http.ResponseWriter, r *http.Request) {
	access, err := s.opts.Backend.GetApplicationComponentsAccessibleByUser(r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeComponentAccess(w, access)
}

func (s *Server) handleGroupAccessibleComponents(w http.ResponseWriter, r *http.Request) {
	access, err := s.opts.Backend.GetApplicationComponentsAccessibleByGroup(r.PathValue("group"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeComponentAccess(w, access)
}

func (s *Server) handleUserAccessibleEntities(w http.ResponseWriter, r *http.Request) {
	refs, err := s.opts.Backend.GetEntitiesAccessibleByUser(r.PathValue("user"), r.PathValue("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeEntityRefs(w, refs)
}

func (s *Server) handleGroupAccessibleEntities(w http.ResponseWriter, r *http.Request) {
	refs, err := s.opts.Backend.GetEntitiesAccessibleByGroup(r.PathValue("group"), r.PathValue("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeEntityRefs(w, refs)
}

func writeComponentAccess(w http.ResponseWriter, access []types.ComponentAccess) {
	if access == nil {
		access = []types.ComponentAccess{}
	}
	writeJSON(w, http.StatusOK, access)
}

func writeEntityRefs(w http.ResponseWriter, refs []types.EntityRef) {
	if refs == nil {
		refs = []types.EntityRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// handleProcessEvents ingests a pre-identified event batch. Events keep
// the ids, occurred times and hash codes their origin assigned.
func (s *Server) handleProcessEvents(w http.ResponseWriter, r *http.Request) {
	var events []*types.Event
	if !decodeBody(w, r, &events) {
		return
	}
	res, err := s.opts.Backend.ProcessEvents(r.Context(), events, boolQuery(r, "ignorePreexisting"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCacheEvents(w http.ResponseWriter, r *http.Request) {
	var events []*types.Event
	if !decodeBody(w, r, &events) {
		return
	}
	s.opts.Backend.CacheEvents(events)
	writeJSON(w, http.StatusOK, map[string]int{"cached": len(events)})
}

func (s *Server) handleEventsSince(w http.ResponseWriter, r *http.Request) {
	priorID, err := uuid.Parse(r.PathValue("priorID"))
	if err != nil {
		writeError(w, &types.ValidationError{Field: "priorID", Reason: "must be a uuid"})
		return
	}
	events, err := s.opts.Backend.EventsSince(priorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Control plane ---

func (s *Server) handleRoutingOn(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Router == nil {
			writeError(w, &types.ValidationError{Field: "routing", Reason: "routing is not configured"})
			return
		}
		s.opts.Router.SetRoutingOn(on)
		writeJSON(w, http.StatusOK, map[string]bool{"routing_on": on})
	}
}

func (s *Server) handleRoutingPause(w http.ResponseWriter, r *http.Request) {
	if s.opts.Router == nil {
		writeError(w, &types.ValidationError{Field: "routing", Reason: "routing is not configured"})
		return
	}
	s.opts.Router.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleRoutingResume(w http.ResponseWriter, r *http.Request) {
	if s.opts.Router == nil {
		writeError(w, &types.ValidationError{Field: "routing", Reason: "routing is not configured"})
		return
	}
	s.opts.Router.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	if s.opts.Router == nil {
		writeError(w, &types.ValidationError{Field: "routing", Reason: "routing is not configured"})
		return
	}
	var window router.Window
	if !decodeBody(w, r, &window) {
		return
	}
	s.opts.Router.SetWindow(window)
	writeJSON(w, http.StatusOK, window)
}

func (s *Server) handleShardConfiguration(w http.ResponseWriter, r *http.Request) {
	if s.opts.Manager == nil {
		writeError(w, &types.ValidationError{Field: "shards", Reason: "shard routing is not configured"})
		return
	}
	var set types.ShardConfigSet
	if !decodeBody(w, r, &set) {
		return
	}
	if err := s.opts.Manager.Reconfigure(set); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"shards": len(set)})
}

func (s *Server) handleTripReset(w http.ResponseWriter, r *http.Request) {
	s.opts.Trip.Reset()
	writeJSON(w, http.StatusOK, map[string]bool{"tripped": false})
}

// --- Ops ---

// healthResponse is the liveness payload
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// readyResponse reports whether the instance can accept traffic
type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.opts.Version,
	})
}

// handleReady verifies the store answers and reports the trip switch.
// A tripped instance still serves reads, so it stays ready; the check
// map carries the state for operators.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := http.StatusOK

	if _, err := s.opts.Backend.GetUsers(); err != nil {
		checks["storage"] = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.opts.Trip.Tripped() {
		checks["trip_switch"] = "tripped: " + s.opts.Trip.Reason()
	} else {
		checks["trip_switch"] = "clear"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, readyResponse{
		Status:    state,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
