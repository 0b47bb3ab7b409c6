package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	accounts *services.AccountService
	avatars  *services.AvatarService
	probe    func(ctx context.Context) error
	logger   logging.Logger
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
	DisplayName   string `json:"displayName"`
	Bio           string `json:"userBio"`
	Avatar        string `json:"avatar"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

// updateRequest uses pointers so absent fields are left unchanged.
type updateRequest struct {
	ID          string  `json:"_id"`
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"userBio"`
	Avatar      *string `json:"avatar"`
}

// bind decodes the JSON body into dst. An empty body, declared or chunked,
// leaves dst zeroed.
func (h *handlers) bind(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": msgBadBody})
		return false
	}
	return true
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		PasswordCheck: req.PasswordCheck,
		DisplayName:   req.DisplayName,
		Bio:           req.Bio,
		Avatar:        req.Avatar,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, account.Profile(true))
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: res.Token, User: res.Account.Profile(false)})
}

func (h *handlers) delete(c *gin.Context) {
	deleted, err := h.accounts.Delete(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, deleted.Profile(true))
}

func (h *handlers) tokenIsValid(c *gin.Context) {
	valid, err := h.accounts.TokenIsValid(c.Request.Context(), c.GetHeader(common.TokenHeaderName))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, valid)
}

func (h *handlers) profile(c *gin.Context) {
	account, err := h.accounts.FetchProfile(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, account.Profile(false))
}

func (h *handlers) update(c *gin.Context) {
	var req updateRequest
	if !h.bind(c, &req) {
		return
	}

	updated, err := h.accounts.UpdateProfile(c.Request.Context(), accountID(c), req.ID, models.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Avatar:      req.Avatar,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, updated.Profile(false))
}

func (h *handlers) avatarUpload(c *gin.Context) {
	if h.avatars == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	upload, err := h.avatars.UploadURL(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}

func (h *handlers) avatarDownload(c *gin.Context) {
	if h.avatars == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	url, err := h.avatars.DownloadURL(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *handlers) health(c *gin.Context) {
	if h.probe != nil {
		if err := h.probe(c.Request.Context()); err != nil {
			h.logger.Warn(c.Request.Context(), "health probe failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
