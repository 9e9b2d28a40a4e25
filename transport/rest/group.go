package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"educhat/domain/chat"
	"educhat/domain/event"
)

type createGroupRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=128"`
	Description string   `json:"description" validate:"max=512"`
	MemberIDs   []string `json:"memberIds"`
}

type addMembersRequest struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1"`
}

type sendGroupMessageRequest struct {
	Content string `json:"content" validate:"required,max=4096"`
}

type searchGroupRequest struct {
	Query string `query:"q" validate:"required"`
	Limit int    `query:"limit"`
}

type groupResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type memberResponse struct {
	UserID   string    `json:"userId"`
	Role     chat.Role `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type groupDetailResponse struct {
	Group    groupResponse               `json:"group"`
	Members  []memberResponse            `json:"members"`
	Messages []event.GroupMessagePayload `json:"messages"`
}

func toGroupResponse(g chat.Group) groupResponse {
	return groupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (s *Server) createGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	group, err := s.groupSvc.CreateGroup(c.Request().Context(), requestUserID(c),
		req.Name, req.Description, req.MemberIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toGroupResponse(group))
}

func (s *Server) listGroups(c echo.Context) error {
	groups, err := s.groupSvc.ListGroups(c.Request().Context(), requestUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(groups, func(g chat.Group, _ int) groupResponse {
		return toGroupResponse(g)
	}))
}

// getGroup returns the group, its members and the most recent messages.
// Fetching marks the caller's unread messages as read.
func (s *Server) getGroup(c echo.Context) error {
	detail, err := s.groupSvc.GetGroup(c.Request().Context(), requestUserID(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, groupDetailResponse{
		Group: toGroupResponse(detail.Group),
		Members: lo.Map(detail.Members, func(m chat.Member, _ int) memberResponse {
			return memberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
		}),
		Messages: lo.Map(detail.Messages, func(m chat.GroupMessage, _ int) event.GroupMessagePayload {
			return event.NewGroupMessagePayload(m)
		}),
	})
}

// sendGroupMessage shares the broadcast engine with the socket path: the
// message is persisted and fanned out to the group room.
func (s *Server) sendGroupMessage(c echo.Context) error {
	var req sendGroupMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	message, err := s.groupSvc.SendMessage(c.Request().Context(), requestUserID(c),
		c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, event.NewGroupMessagePayload(message))
}

func (s *Server) addMembers(c echo.Context) error {
	var req addMembersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	if err := s.groupSvc.AddMembers(c.Request().Context(), requestUserID(c),
		c.Param("id"), req.MemberIDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) removeMember(c echo.Context) error {
	if err := s.groupSvc.RemoveMember(c.Request().Context(), requestUserID(c),
		c.Param("id"), c.Param("memberId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) leaveGroup(c echo.Context) error {
	if err := s.groupSvc.Leave(c.Request().Context(), requestUserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) searchGroup(c echo.Context) error {
	req := searchGroupRequest{Query: c.QueryParam("q")}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		req.Limit = limit
	}
	if err := validate.Struct(req); err != nil {
		return err
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	hits, err := s.groupSvc.Search(c.Request().Context(), requestUserID(c),
		c.Param("id"), req.Query, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": hits})
}
