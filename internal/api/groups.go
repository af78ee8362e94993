package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"huddle/internal/constants"
	"huddle/internal/db"
	"huddle/internal/models"
	"huddle/internal/ws"
)

type GroupHandler struct {
	groups *db.GroupRepository
	users  *db.UserRepository
	hub    *ws.Hub
}

func NewGroupHandler(groups *db.GroupRepository, users *db.UserRepository, hub *ws.Hub) *GroupHandler {
	return &GroupHandler{groups: groups, users: users, hub: hub}
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type UpdateGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type AddMemberRequest struct {
	UserID int64  `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=admin member"`
}

type UpdateMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

// POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	var req CreateGroupRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	group, err := h.groups.Create(req.Name, userID)
	if err != nil {
		slog.Error("error creating group", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

// GET /api/v1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	groups, err := h.groups.ListForUser(userID)
	if err != nil {
		slog.Error("error listing groups", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

// GET /api/v1/groups/{group_id}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireMember(w, group.ID, userID, "User is not a member of this group") {
		return
	}

	members, err := h.groups.Members(group.ID)
	if err != nil {
		slog.Error("error listing members", "error", err)
		internalError(w)
		return
	}

	messages, err := h.groups.ListMessages(group.ID, 0, constants.GroupMessageHistoryMaxLimit)
	if err != nil {
		slog.Error("error listing group messages", "error", err)
		internalError(w)
		return
	}

	details := models.GroupDetails{Group: *group}
	for _, m := range members {
		details.Members = append(details.Members, *m)
	}
	for _, m := range messages {
		details.Messages = append(details.Messages, *m)
	}

	writeJSON(w, http.StatusOK, details)
}

// PUT /api/v1/groups/{group_id}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, group.ID, userID) {
		return
	}

	var req UpdateGroupRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.groups.UpdateName(group.ID, req.Name); err != nil {
		slog.Error("error updating group", "error", err)
		internalError(w)
		return
	}

	updated, err := h.groups.FindByID(group.ID)
	if err != nil {
		slog.Error("error reloading group", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/groups/{group_id}
//
// A group with members can only be deleted by its creator, and only when the
// creator is the last one left.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, group.ID, userID) {
		return
	}

	count, err := h.groups.MemberCount(group.ID)
	if err != nil {
		slog.Error("error counting members", "error", err)
		internalError(w)
		return
	}
	if count > 0 && !(count == 1 && userID == group.CreatorID) {
		badRequest(w, "Group cannot be deleted because it still has members. Please remove all members before deleting the group.")
		return
	}

	if err := h.groups.Delete(group.ID); err != nil {
		slog.Error("error deleting group", "error", err)
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/groups/{group_id}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, group.ID, userID) {
		return
	}

	var req AddMemberRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if _, err := h.users.FindByID(req.UserID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "User to add not found")
			return
		}
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	member, err := h.groups.AddMember(group.ID, req.UserID, req.Role)
	if errors.Is(err, db.ErrDuplicate) {
		badRequest(w, "User is already a member of this group")
		return
	}
	if err != nil {
		slog.Error("error adding member", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

// GET /api/v1/groups/{group_id}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireMember(w, group.ID, userID, "User is not a member of this group") {
		return
	}

	members, err := h.groups.Members(group.ID)
	if err != nil {
		slog.Error("error listing members", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// DELETE /api/v1/groups/{group_id}/members/{user_id}
//
// Admins can remove anyone but themselves-as-last-admin; everyone else can
// only remove themselves.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		badRequest(w, "user_id must be an integer")
		return
	}

	if _, err := h.groups.FindMember(group.ID, targetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Member not found in this group")
			return
		}
		slog.Error("error finding member", "error", err)
		internalError(w)
		return
	}

	isAdmin := false
	if current, err := h.groups.FindMember(group.ID, userID); err == nil {
		isAdmin = current.Role == models.RoleAdmin
	} else if !errors.Is(err, db.ErrNotFound) {
		slog.Error("error finding member", "error", err)
		internalError(w)
		return
	}

	if isAdmin {
		if targetID == userID {
			admins, err := h.groups.AdminCount(group.ID)
			if err != nil {
				slog.Error("error counting admins", "error", err)
				internalError(w)
				return
			}
			if admins == 1 {
				badRequest(w, "Cannot remove the only admin. Transfer admin role or delete the group.")
				return
			}
		}
	} else if targetID != userID {
		forbidden(w, "Not authorized to remove this member. Only admins or the user themselves can perform this action.")
		return
	}

	if err := h.groups.RemoveMember(group.ID, targetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Member not found in this group")
			return
		}
		slog.Error("error removing member", "error", err)
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/groups/{group_id}/members/{user_id}
func (h *GroupHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, group.ID, userID) {
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		badRequest(w, "user_id must be an integer")
		return
	}

	var req UpdateMemberRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.groups.UpdateMemberRole(group.ID, targetID, req.Role); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Member not found")
			return
		}
		slog.Error("error updating member role", "error", err)
		internalError(w)
		return
	}

	member, err := h.groups.FindMember(group.ID, targetID)
	if err != nil {
		slog.Error("error reloading member", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// loadGroup resolves the {group_id} path segment.
func (h *GroupHandler) loadGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "group_id"), 10, 64)
	if err != nil {
		badRequest(w, "group_id must be an integer")
		return nil, false
	}

	group, err := h.groups.FindByID(groupID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Group not found")
		return nil, false
	}
	if err != nil {
		slog.Error("error finding group", "error", err)
		internalError(w)
		return nil, false
	}

	return group, true
}

func (h *GroupHandler) requireAdmin(w http.ResponseWriter, groupID, userID int64) bool {
	member, err := h.groups.FindMember(groupID, userID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && member.Role != models.RoleAdmin) {
		forbidden(w, "User is not an admin of this group or action not permitted")
		return false
	}
	if err != nil {
		slog.Error("error finding member", "error", err)
		internalError(w)
		return false
	}
	return true
}

func (h *GroupHandler) requireMember(w http.ResponseWriter, groupID, userID int64, message string) bool {
	ok, err := h.groups.IsMember(groupID, userID)
	if err != nil {
		slog.Error("error checking membership", "error", err)
		internalError(w)
		return false
	}
	if !ok {
		forbidden(w, message)
		return false
	}
	return true
}
