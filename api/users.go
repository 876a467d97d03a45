package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/service/users"
)

type UserHandler struct {
	service users.UserUseCase
	logger  logrus.FieldLogger
}

func NewUserHandler(service users.UserUseCase, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{service: service, logger: logger}
}

func (h *UserHandler) Register(router *gin.RouterGroup, auth, adminOnly gin.HandlerFunc) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.GET("/profile", auth, h.profile)
	router.PUT("/profile", auth, h.updateProfile)
	router.GET("", auth, adminOnly, h.list)
	router.GET("/admin/all", auth, adminOnly, h.list)
}

func (h *UserHandler) register(c *gin.Context) {
	var req users.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}
	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h *UserHandler) login(c *gin.Context) {
	var req users.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}
	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *UserHandler) profile(c *gin.Context) {
	identity, _ := identityFrom(c)
	user, err := h.service.Profile(c.Request.Context(), identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *UserHandler) updateProfile(c *gin.Context) {
	identity, _ := identityFrom(c)
	var req users.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), identity, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *UserHandler) list(c *gin.Context) {
	all, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondList(c, all)
}
