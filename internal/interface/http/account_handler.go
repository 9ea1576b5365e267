package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "cardroom/internal/application"
	"cardroom/pkg/helpers"
	"cardroom/pkg/response"
	"cardroom/pkg/validation"
)

// AccountHandler exposes the signup, login, and logout flows plus the
// profile endpoints behind the session middleware.
type AccountHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAccountHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type signupRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	ProfilePicture string `json:"profile_picture"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name           string `json:"name" binding:"omitempty,max=100"`
	ProfilePicture string `json:"profile_picture" binding:"omitempty,url"`
}

// Wire messages for the enumerated client faults. Credential and
// business-rule errors are the only ones that reach the client verbatim.
func clientMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, userapp.ErrMissingField):
		return "All Fields are required", true
	case errors.Is(err, userapp.ErrInvalidEmail):
		return "Not a valid Email", true
	case errors.Is(err, userapp.ErrWeakPassword):
		return "Password must be 8 characters long", true
	case errors.Is(err, userapp.ErrEmailInUse):
		return "Email is already in use", true
	case errors.Is(err, userapp.ErrEmailNotFound):
		return "didn't find this email", true
	case errors.Is(err, userapp.ErrWrongPassword):
		return "Wrong Password", true
	}
	return "", false
}

// fail maps an error from the service to the response envelope: enumerated
// client faults become 400 with their wire message, everything else is a
// logged 500. The raw error never leaks to the client.
func (h *AccountHandler) fail(c *gin.Context, err error) {
	if msg, ok := clientMessage(err); ok {
		response.Error[any](c, http.StatusBadRequest, msg, nil)
		return
	}
	h.Logger.WithError(err).WithField("path", c.FullPath()).Error("account flow failed")
	response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
}

// Signup POST /user/signup
func (h *AccountHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	sess, err := h.Svc.Signup(c.Request.Context(), userapp.SignupInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.Cookies.SetSession(c, sess.Token, sess.TokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"name":    sess.Name,
		"email":   sess.Email,
		"token":   sess.Token,
		"user_id": sess.UserID,
	}, "Registered successfully!")
}

// Login POST /user/login
func (h *AccountHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	sess, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.Cookies.SetSession(c, sess.Token, sess.TokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"name":  sess.Name,
		"email": sess.Email,
		"token": sess.Token,
	}, "logged in successfully!")
}

// Logout POST /user/logout
// Logging out re-authenticates with email and password before clearing the
// session cookie.
func (h *AccountHandler) Logout(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	if err := h.Svc.Logout(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, err)
		return
	}

	h.Cookies.ClearSession(c)
	response.Success(c, http.StatusOK, gin.H{}, "logged out successfully!")
}

// Me GET /user/me (session required)
func (h *AccountHandler) Me(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user_id":         u.ID,
		"name":            u.Name,
		"email":           u.Email,
		"profile_picture": u.ProfilePicture,
		"chips":           u.Chips,
		"created_at":      u.CreatedAt,
	}, "profile")
}

// UpdateMe PUT /user/me (session required)
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, userapp.UpdateProfileInput{
		Name:           req.Name,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user_id":         u.ID,
		"name":            u.Name,
		"email":           u.Email,
		"profile_picture": u.ProfilePicture,
	}, "profile updated")
}

// UploadAvatar POST /user/me/avatar (session required, multipart)
func (h *AccountHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString("userID")
	file, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file required", nil)
		return
	}
	src, err := file.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer func() { _ = src.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, src, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"profile_picture": url}, "avatar uploaded")
}

// Search GET /user/search?q=&size= (session required)
func (h *AccountHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "query required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results")
}
