package projects

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "supamon-backend/internal/errors"
	"supamon-backend/internal/models"
	"supamon-backend/pkg/utils"
)

// Handler exposes Service over HTTP.
type Handler struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithOriginCheck decides which browser origins may open the dashboard stream.
func WithOriginCheck(check func(*http.Request) bool) HandlerOption {
	return func(h *Handler) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHandler creates the HTTP adapter. Without WithOriginCheck the stream
// accepts only same-origin browsers (and clients that send no Origin).
func NewHandler(svc *Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 << 10,
			WriteBufferSize: 64 << 10,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the REST routes on api and the dashboard stream on ws.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, ws gin.IRoutes) {
	projects := api.Group("/projects")
	{
		projects.POST("", h.HandleRegisterProject)
		projects.GET("", h.HandleListProjects)
		projects.GET("/:id", h.HandleGetProject)
		projects.PUT("/:id", h.HandleUpdateProject)
		projects.DELETE("/:id", h.HandleDeleteProject)
		projects.GET("/:id/dashboard", h.HandleGetDashboard)
		projects.GET("/:id/rules", h.HandleListProjectRules)
		projects.POST("/:id/rules", h.HandleCreateRule)
	}

	rules := api.Group("/rules")
	{
		rules.GET("", h.HandleListRules)
		rules.GET("/:id", h.HandleGetRule)
		rules.PUT("/:id", h.HandleReplaceRule)
		rules.DELETE("/:id", h.HandleDeleteRule)
		rules.PATCH("/:id/enabled", h.HandleSetRuleEnabled)
	}

	ws.GET("/ws/projects/:id/dashboard", h.HandleDashboardWebSocket)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, apperrors.Validation("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func views(projects []models.Project) []models.ProjectView {
	out := make([]models.ProjectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.View())
	}
	return out
}

// HandleRegisterProject validates and stores a new project.
func (h *Handler) HandleRegisterProject(c *gin.Context) {
	var in RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	project, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project.View())
}

// HandleListProjects lists projects without their secrets.
func (h *Handler) HandleListProjects(c *gin.Context) {
	projects, err := h.svc.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": views(projects)})
}

// HandleGetProject returns one project.
func (h *Handler) HandleGetProject(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project.View())
}

// HandleUpdateProject edits a project.
func (h *Handler) HandleUpdateProject(c *gin.Context) {
	var in UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	project, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project.View())
}

// HandleDeleteProject removes a project.
func (h *Handler) HandleDeleteProject(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetDashboard returns a fresh snapshot. ?persist_status=true records
// the derived status on the project.
func (h *Handler) HandleGetDashboard(c *gin.Context) {
	persist, _ := strconv.ParseBool(c.Query("persist_status"))
	snap, err := h.svc.Dashboard(c.Request.Context(), c.Param("id"), persist)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleListRules lists rules, optionally filtered by ?project_id=.
func (h *Handler) HandleListRules(c *gin.Context) {
	rules, err := h.svc.ListRules(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// HandleListProjectRules lists the rules of one project.
func (h *Handler) HandleListProjectRules(c *gin.Context) {
	rules, err := h.svc.ListRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// HandleCreateRule adds a rule to a project.
func (h *Handler) HandleCreateRule(c *gin.Context) {
	var in RuleInput
	if !bindJSON(c, &in) {
		return
	}
	rule, err := h.svc.CreateRule(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// HandleGetRule returns one rule.
func (h *Handler) HandleGetRule(c *gin.Context) {
	rule, err := h.svc.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// HandleReplaceRule overwrites a rule.
func (h *Handler) HandleReplaceRule(c *gin.Context) {
	var in RuleInput
	if !bindJSON(c, &in) {
		return
	}
	rule, err := h.svc.ReplaceRule(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// HandleDeleteRule removes a rule.
func (h *Handler) HandleDeleteRule(c *gin.Context) {
	if err := h.svc.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSetRuleEnabled toggles a rule.
func (h *Handler) HandleSetRuleEnabled(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if body.Enabled == nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, apperrors.Validation("enabled is required"))
		return
	}
	rule, err := h.svc.SetRuleEnabled(c.Request.Context(), c.Param("id"), *body.Enabled)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}
