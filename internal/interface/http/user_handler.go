package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-user-service/internal/application"
	"github.com/oksasatya/go-user-service/internal/domain"
	"github.com/oksasatya/go-user-service/internal/domain/entity"
	"github.com/oksasatya/go-user-service/pkg/response"
	"github.com/oksasatya/go-user-service/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.UserUseCases
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.UserUseCases, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type listUsersQuery struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Status string `form:"status" binding:"omitempty,userstatus"`
}

type searchUsersQuery struct {
	Q    string `form:"q" binding:"required,max=200"`
	Size int    `form:"size"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req userapp.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u, "user created", nil)
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.Svc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user", nil)
}

func (h *UserHandler) List(c *gin.Context) {
	var q listUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid query", validation.ToDetails(err))
		return
	}
	query := userapp.ListUsersQuery{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := entity.Status(q.Status)
		query.Status = &st
	}

	res, err := h.Svc.ListUsers(c.Request.Context(), query)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Data, "users", map[string]any{
		"total":  res.Total,
		"limit":  res.Limit,
		"offset": res.Offset,
	})
}

// Update serves both PATCH and PUT; absent fields are left unchanged.
func (h *UserHandler) Update(c *gin.Context) {
	var req userapp.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user updated", nil)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"id": id, "deleted": true}, "user deleted", nil)
}

func (h *UserHandler) Search(c *gin.Context) {
	var q searchUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid query", validation.ToDetails(err))
		return
	}
	users, err := h.Svc.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, users, "search results", map[string]any{"count": len(users)})
}

func (h *UserHandler) Export(c *gin.Context) {
	res, err := h.Svc.ExportUsers(c.Request.Context())
	if err != nil {
		if errors.Is(err, userapp.ErrExportNotConfigured) {
			response.Error[any](c, http.StatusServiceUnavailable, "export not configured", nil)
			return
		}
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "users exported", nil)
}

// fail maps domain errors to HTTP statuses; anything unrecognised is logged and hidden behind a 500.
func (h *UserHandler) fail(c *gin.Context, err error) {
	var nf *domain.EntityNotFoundError
	var ae *domain.EntityAlreadyExistsError
	switch {
	case errors.As(err, &nf):
		response.Error[any](c, http.StatusNotFound, "user not found", map[string]string{"id": nf.ID})
	case errors.As(err, &ae):
		response.Error[any](c, http.StatusConflict, "user already exists", map[string]string{ae.Field: "already taken"})
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).WithFields(logrus.Fields{
				"method":     c.Request.Method,
				"path":       c.FullPath(),
				"request_id": c.GetString("request_id"),
			}).Error("user request failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
	}
}
