package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/service"
)

// APIHandlers exposes HTTP handlers for the node API. The surrounding
// request layer is trusted to have verified that the caller's signature
// matches the keys named in each payload; timestamps are client-supplied
// and passed through unvalidated.
type APIHandlers struct {
	logger       *slog.Logger
	connections  *service.ConnectionService
	groups       *service.GroupService
	eligibility  *service.EligibilityService
	users        *service.UserService
	identity     *service.IdentityService
	sponsorships *service.SponsorshipService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(
	logger *slog.Logger,
	connections *service.ConnectionService,
	groups *service.GroupService,
	eligibility *service.EligibilityService,
	users *service.UserService,
	identity *service.IdentityService,
	sponsorships *service.SponsorshipService,
) *APIHandlers {
	return &APIHandlers{
		logger:       logger,
		connections:  connections,
		groups:       groups,
		eligibility:  eligibility,
		users:        users,
		identity:     identity,
		sponsorships: sponsorships,
	}
}

type connectionRequest struct {
	User1     string `json:"user1"`
	User2     string `json:"user2"`
	Timestamp int64  `json:"timestamp"`
}

func (h *APIHandlers) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		return
	}

	var req connectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	if r.Method == http.MethodPut {
		err = h.connections.AddConnection(r.Context(), req.User1, req.User2, req.Timestamp)
	} else {
		err = h.connections.RemoveConnection(r.Context(), req.User1, req.User2, req.Timestamp)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type registerUserRequest struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
}

func (h *APIHandlers) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req registerUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.users.Register(r.Context(), req.Key, req.Timestamp); err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"key": req.Key})
}

type userResponse struct {
	Key               string   `json:"key"`
	Score             float64  `json:"score"`
	Verifications     []string `json:"verifications"`
	EligibleGroups    []string `json:"eligibleGroups"`
	EligibleTimestamp int64    `json:"eligibleTimestamp"`
	CreatedAt         int64    `json:"createdAt"`
}

type userSummaryResponse struct {
	Key            string   `json:"key"`
	Score          float64  `json:"score"`
	CurrentGroups  []string `json:"currentGroups"`
	EligibleGroups []string `json:"eligibleGroups"`
}

func (h *APIHandlers) handleUserSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	parts := strings.Split(rest, "/")
	key := parts[0]
	if key == "" {
		writeError(w, http.StatusBadRequest, "user key is required")
		return
	}

	switch {
	case len(parts) == 1:
		h.getUser(w, r, key)
	case len(parts) == 2 && parts[1] == "summary":
		h.getUserSummary(w, r, key)
	case len(parts) == 2 && parts[1] == "sponsored":
		h.getSponsored(w, r, key)
	case len(parts) == 3 && parts[1] == "verifications":
		h.getVerification(w, r, key, parts[2])
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (h *APIHandlers) getUser(w http.ResponseWriter, r *http.Request, key string) {
	user, err := h.users.GetUser(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, userResponse{
		Key:               user.Key,
		Score:             user.Score,
		Verifications:     emptyIfNil(user.Verifications),
		EligibleGroups:    emptyIfNil(user.EligibleGroups),
		EligibleTimestamp: user.EligibleTimestamp,
		CreatedAt:         user.CreatedAt,
	})
}

func (h *APIHandlers) getUserSummary(w http.ResponseWriter, r *http.Request, key string) {
	summary, err := h.users.GetUserSummary(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, userSummaryResponse{
		Key:            summary.Key,
		Score:          summary.Score,
		CurrentGroups:  emptyIfNil(summary.CurrentGroups),
		EligibleGroups: emptyIfNil(summary.EligibleGroups),
	})
}

func (h *APIHandlers) getSponsored(w http.ResponseWriter, r *http.Request, key string) {
	sponsored, err := h.sponsorships.IsSponsored(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"sponsored": sponsored})
}

func (h *APIHandlers) getVerification(w http.ResponseWriter, r *http.Request, key, name string) {
	has, err := h.users.HasVerification(r.Context(), key, name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"hasVerification": has})
}

type createGroupRequest struct {
	Creator    string `json:"creator"`
	Cofounder1 string `json:"cofounder1"`
	Cofounder2 string `json:"cofounder2"`
	Timestamp  int64  `json:"timestamp"`
}

type groupResponse struct {
	ID        string   `json:"id"`
	Score     float64  `json:"score"`
	Founders  []string `json:"founders"`
	Stage     string   `json:"stage"`
	CreatedAt int64    `json:"createdAt"`
	Members   []string `json:"members,omitempty"`
}

func (h *APIHandlers) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req createGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.groups.CreateGroup(r.Context(), req.Creator, req.Cofounder1, req.Cofounder2, req.Timestamp)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupResponse{
		ID:        g.ID,
		Score:     g.Score,
		Founders:  g.Founders,
		Stage:     string(g.Stage),
		CreatedAt: g.CreatedAt,
	})
}

type membershipRequest struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
}

type dissolveRequest struct {
	Requester string `json:"requester"`
}

func (h *APIHandlers) handleGroupSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/groups/"), "/")
	parts := strings.Split(rest, "/")
	groupID := parts[0]
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "group id is required")
		return
	}

	switch {
	case len(parts) == 1:
		h.handleGroupByID(w, r, groupID)
	case len(parts) == 2 && parts[1] == "members":
		h.handleGroupMembers(w, r, groupID)
	case len(parts) == 2 && parts[1] == "eligibility":
		h.handleGroupEligibility(w, r, groupID)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (h *APIHandlers) handleGroupByID(w http.ResponseWriter, r *http.Request, groupID string) {
	switch r.Method {
	case http.MethodGet:
		view, err := h.groups.GetGroup(r.Context(), groupID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, groupResponse{
			ID:        view.Group.ID,
			Score:     view.Group.Score,
			Founders:  view.Group.Founders,
			Stage:     string(view.Group.Stage),
			CreatedAt: view.Group.CreatedAt,
			Members:   view.Members,
		})
	case http.MethodDelete:
		var req dissolveRequest
		if !h.decode(w, r, &req) {
			return
		}
		if err := h.groups.Dissolve(r.Context(), groupID, req.Requester); err != nil {
			h.writeDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (h *APIHandlers) handleGroupMembers(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		return
	}

	var req membershipRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	if r.Method == http.MethodPut {
		err = h.groups.Join(r.Context(), groupID, req.Key, req.Timestamp)
	} else {
		err = h.groups.Leave(r.Context(), groupID, req.Key)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *APIHandlers) handleGroupEligibility(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := r.URL.Query().Get("user")
	eligible, err := h.eligibility.IsEligibleToJoin(r.Context(), groupID, key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

type contextRequest struct {
	ID                string `json:"id"`
	Collection        string `json:"collection"`
	Verification      string `json:"verification"`
	TotalSponsorships int    `json:"totalSponsorships"`
}

type contextResponse struct {
	ID                     string `json:"id"`
	Collection             string `json:"collection"`
	Verification           string `json:"verification"`
	TotalSponsorships      int    `json:"totalSponsorships"`
	UnusedSponsorshipSlots int    `json:"unusedSponsorshipSlots"`
}

func (h *APIHandlers) handleContexts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req contextRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.sponsorships.UpsertContext(r.Context(), domain.Context{
		ID:                req.ID,
		Collection:        req.Collection,
		Verification:      req.Verification,
		TotalSponsorships: req.TotalSponsorships,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *APIHandlers) handleContextByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	contextID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/contexts/"), "/")
	c, err := h.sponsorships.GetContext(r.Context(), contextID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, contextResponse{
		ID:                     c.ID,
		Collection:             c.Collection,
		Verification:           c.Verification,
		TotalSponsorships:      c.TotalSponsorships,
		UnusedSponsorshipSlots: c.UnusedSponsorshipSlots(),
	})
}

type sponsorRequest struct {
	Key       string `json:"key"`
	ContextID string `json:"contextId"`
}

func (h *APIHandlers) handleSponsorships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req sponsorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.sponsorships.Sponsor(r.Context(), req.Key, req.ContextID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type linkRequest struct {
	Key       string `json:"key"`
	ContextID string `json:"contextId"`
	AccountID string `json:"accountId"`
	Timestamp int64  `json:"timestamp"`
}

func (h *APIHandlers) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req linkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.identity.LinkAccount(r.Context(), req.Key, req.ContextID, req.AccountID, req.Timestamp); err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, nil)
}

func (h *APIHandlers) handleRevocableLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	key := r.URL.Query().Get("user")
	contextID := r.URL.Query().Get("context")
	accountIDs, err := h.identity.RevocableLinks(r.Context(), key, contextID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"accountIds": emptyIfNil(accountIDs)})
}

func (h *APIHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func (h *APIHandlers) writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		respondJSON(w, statusForKind(domainErr.Kind), errorResponse{
			Error: domainErr.Message,
			Code:  domainErr.Code,
			Kind:  string(domainErr.Kind),
		})
		return
	}

	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindEligibility, domain.KindCapacity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
