package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"breederhub/api/internal/api/middleware"
	"breederhub/api/internal/config"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/storage"
	"breederhub/api/internal/tasks"
	"breederhub/api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods. principal is nil for guests.
type apiMethodFunc func(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError)

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// apiErrorFrom turns a service error into the message shown to the client. Internal errors are
// logged and replaced by fallback.
func apiErrorFrom(err error, fallback string) *ApiError {
	if statusFor(err) == http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", fallback, err)
		return NewApiError(fallback)
	}
	return NewApiError(services.PublicMessage(err))
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string      `json:"token"`
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg             *config.Config
	taskClient      IAsynqClient
	identityService services.IIdentityService
	userService     services.IUserService
	listingService  services.IListingService
	adminService    services.IAdminService
	storageService  storage.IS3Storage
	auditService    services.IAuditService
	methods         map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	taskClient IAsynqClient,
	identityService services.IIdentityService,
	userService services.IUserService,
	listingService services.IListingService,
	adminService services.IAdminService,
	storageService storage.IS3Storage,
	auditService services.IAuditService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:             cfg,
		taskClient:      taskClient,
		identityService: identityService,
		userService:     userService,
		listingService:  listingService,
		adminService:    adminService,
		storageService:  storageService,
		auditService:    auditService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":               h.ping,
		"register":           h.register,
		"login":              h.login,
		"refreshToken":       h.refreshToken,
		"changePassword":     h.changePassword,
		"giveConsent":        h.giveConsent,
		"withdrawConsent":    h.withdrawConsent,
		"updateProfile":      h.updateProfile,
		"getUploadURL":       h.getUploadURL,
		"confirmImageUpload": h.confirmImageUpload,
		"lockUser":           h.lockUser,
		"unlockUser":         h.unlockUser,
		"setUserRole":        h.setUserRole,
		"deleteUser":         h.deleteUser,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	principal, authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	result, apiErr := handlerFunc(c, principal, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod resolves the caller. Public methods accept an optional token and fall back
// to a guest; a resolved principal is also stored in the Gin context for the audit middleware.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) (*models.Principal, *ApiError) {
	needsAuth := h.methodRequiresAuth(method)
	needsAdmin := h.methodRequiresAdmin(method)
	authHeader := c.GetHeader("Authorization")

	if !needsAuth && !needsAdmin {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return nil, nil
		}
		principal, err := h.identityService.ResolveCurrentUser(c.Request.Context(), authHeader)
		if err != nil {
			log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
			return nil, nil
		}
		c.Set(middleware.ContextKeyPrincipal, principal)
		return principal, nil
	}

	if authHeader == "" {
		return nil, NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, NewApiError("Authorization header format must be Bearer {token}")
	}
	principal, err := h.identityService.ResolveCurrentUser(c.Request.Context(), parts[1])
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return nil, apiErrorFrom(err, "Failed to verify session")
	}

	if needsAdmin && !principal.Role.IsAdmin() {
		log.Printf("DEBUG: Admin privileges required but not present for method %s", method)
		return nil, NewApiError("Administrator privileges required")
	}

	c.Set(middleware.ContextKeyPrincipal, principal)
	return principal, nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "refreshToken",
		"changePassword",
		"giveConsent",
		"withdrawConsent",
		"updateProfile",
		"getUploadURL",
		"confirmImageUpload",
		"lockUser",
		"unlockUser",
		"setUserRole",
		"deleteUser":
		return true

	case "ping",
		"register",
		"login":
		return false

	default:
		log.Printf("Warning: methodRequiresAuth check for unlisted method '%s', defaulting to true", method)
		return true
	}
}

// methodRequiresAdmin checks if a given API method requires admin privileges.
func (h *JsonApiHandler) methodRequiresAdmin(method string) bool {
	switch method {
	case "lockUser",
		"unlockUser",
		"setUserRole",
		"deleteUser":
		return true
	default:
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects it to be a JSON array with at least one element,
// and unmarshals that first element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

func (h *JsonApiHandler) parseUserIDArg(args json.RawMessage) (utils.SixID, *ApiError) {
	var userIDStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &userIDStr); apiErr != nil {
		return utils.SixID{}, apiErr
	}
	userID, err := utils.ParseSixID(userIDStr)
	if err != nil {
		return utils.SixID{}, NewApiError("Invalid user_id format in argument")
	}
	return userID, nil
}

func (h *JsonApiHandler) issueAuthResponse(user *models.User) (interface{}, *ApiError) {
	token, err := h.identityService.IssueToken(user)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.ID.String(), err)
		return nil, NewApiError("Failed to generate session token")
	}
	return AuthResponse{Token: token, ID: user.ID.String(), Email: user.Email, Role: user.Role}, nil
}

// recordAccountEvent audits a credential method. The request middleware skips these, so the
// event is written here with identifying metadata only.
func (h *JsonApiHandler) recordAccountEvent(c *gin.Context, action string, userID *utils.SixID, metadata map[string]any) {
	if h.auditService == nil {
		return
	}
	h.auditService.Record(c.Request.Context(), models.AuditEntry{
		UserID:   userID,
		Action:   action,
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		Status:   http.StatusOK,
		IP:       c.ClientIP(),
		Metadata: metadata,
	})
}

func auditEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	return "pong", nil
}

func (h *JsonApiHandler) register(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var in services.RegisterInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	user, err := h.userService.Register(c.Request.Context(), in, c.ClientIP())
	if err != nil {
		h.recordAccountEvent(c, models.AuditRegisterFailed, nil, map[string]any{
			"email":  auditEmail(in.Email),
			"reason": services.PublicMessage(err),
		})
		return nil, apiErrorFrom(err, "Registration failed")
	}
	log.Printf("Registered %s user %s", user.Role, user.ID.String())
	h.recordAccountEvent(c, models.AuditRegister, &user.ID, map[string]any{"email": user.Email, "role": string(user.Role)})
	return h.issueAuthResponse(user)
}

// LoginArgs defines the arguments for login.
type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login returns an AuthResponse, or false for bad credentials without saying which part was wrong.
func (h *JsonApiHandler) login(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LoginArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	user, err := h.userService.Authenticate(c.Request.Context(), reqArgs.Email, reqArgs.Password)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			h.recordAccountEvent(c, models.AuditLoginFailed, nil, map[string]any{
				"email":  auditEmail(reqArgs.Email),
				"reason": services.PublicMessage(err),
			})
			return false, nil
		}
		return nil, apiErrorFrom(err, "Database error")
	}
	log.Printf("Login successful for user %s", user.ID.String())
	h.recordAccountEvent(c, models.AuditLoginSuccess, &user.ID, map[string]any{"email": user.Email})
	return h.issueAuthResponse(user)
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	user, err := h.userService.FindByID(c.Request.Context(), principal.UserID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to refresh session token")
	}
	token, err := h.identityService.IssueToken(user)
	if err != nil {
		log.Printf("Failed to generate refreshed JWT for user %s: %v", user.ID.String(), err)
		return nil, NewApiError("Failed to refresh session token")
	}
	h.recordAccountEvent(c, models.AuditTokenRefreshed, &user.ID, nil)
	return token, nil
}

// changePassword expects arguments ["current_password", "new_password"].
func (h *JsonApiHandler) changePassword(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var passwords []string
	if err := json.Unmarshal(args, &passwords); err != nil {
		return nil, NewApiError("Invalid arguments: expected array of two strings [current_password, new_password]")
	}
	if len(passwords) != 2 {
		return nil, NewApiError("Expected array with exactly 2 elements: [current_password, new_password]")
	}
	if err := h.userService.ChangePassword(c.Request.Context(), principal.UserID, passwords[0], passwords[1]); err != nil {
		h.recordAccountEvent(c, models.AuditPasswordChangeFailed, &principal.UserID, map[string]any{"reason": services.PublicMessage(err)})
		return nil, apiErrorFrom(err, "Failed to update password")
	}
	h.recordAccountEvent(c, models.AuditPasswordChanged, &principal.UserID, nil)
	return true, nil
}

func (h *JsonApiHandler) giveConsent(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	return h.setConsent(c, principal, true)
}

func (h *JsonApiHandler) withdrawConsent(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	return h.setConsent(c, principal, false)
}

func (h *JsonApiHandler) setConsent(c *gin.Context, principal *models.Principal, agreed bool) (interface{}, *ApiError) {
	consent, err := h.userService.SetConsent(c.Request.Context(), principal.UserID, agreed, c.ClientIP())
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to update consent")
	}
	return consent, nil
}

func (h *JsonApiHandler) updateProfile(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var in services.ProfileInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.ProfileImageKey != nil && *in.ProfileImageKey != "" && !storage.KeyOwnedBy(*in.ProfileImageKey, principal.UserID.String()) {
		return nil, NewApiError("Invalid profile_image_key")
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), principal.UserID, in)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to update profile")
	}
	return user, nil
}

// GetUploadURLArgs defines the arguments for getUploadURL.
type GetUploadURLArgs struct {
	Scope       string `json:"scope"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (filename, content_type)")
	}
	if _, ok := allowedImageTypes[reqArgs.ContentType]; !ok {
		return nil, NewApiError("Unsupported content_type")
	}

	userIDStr := principal.UserID.String()
	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), userIDStr, reqArgs.Scope, reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		log.Printf("Error generating presigned URL for user %s: %v", userIDStr, err)
		return nil, NewApiError("Failed to generate upload URL")
	}
	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

// ConfirmImageUploadArgs defines the arguments for confirmImageUpload.
type ConfirmImageUploadArgs struct {
	ListingID string `json:"listing_id"`
	ObjectKey string `json:"object_key"`
}

// confirmImageUpload schedules processing of an uploaded listing image. The key must have been
// issued to the caller and the caller must be allowed to edit the listing.
func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.ListingID == "" || reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required arguments (listing_id, object_key)")
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}
	if !storage.KeyOwnedBy(reqArgs.ObjectKey, principal.UserID.String()) {
		return nil, NewApiError("Invalid object_key")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to load listing")
	}
	if !principal.Role.CanManageListing(principal.UserID, listing.BreederID) {
		return nil, NewApiError("You can only edit your own listings")
	}

	task, err := tasks.NewImageProcessTask(reqArgs.ObjectKey, listingID)
	if err != nil {
		log.Printf("ERROR building image task for key %s: %v", reqArgs.ObjectKey, err)
		return nil, NewApiError("Failed to schedule image processing")
	}
	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("ERROR enqueuing image processing task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}

	log.Printf("Enqueued image processing task ID %s for key %s, listing %s", taskInfo.ID, reqArgs.ObjectKey, reqArgs.ListingID)
	return gin.H{
		"message": "Image upload confirmed, processing scheduled.",
		"task_id": taskInfo.ID,
	}, nil
}

func (h *JsonApiHandler) lockUser(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	return h.setLocked(c, principal, args, true)
}

func (h *JsonApiHandler) unlockUser(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	return h.setLocked(c, principal, args, false)
}

func (h *JsonApiHandler) setLocked(c *gin.Context, principal *models.Principal, args json.RawMessage, locked bool) (interface{}, *ApiError) {
	userID, apiErr := h.parseUserIDArg(args)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := h.adminService.SetLocked(c.Request.Context(), *principal, userID, locked); err != nil {
		return nil, apiErrorFrom(err, "Failed to update user")
	}
	return nil, nil
}

// SetUserRoleArgs defines the arguments for setUserRole.
type SetUserRoleArgs struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *JsonApiHandler) setUserRole(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs SetUserRoleArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	userID, err := utils.ParseSixID(reqArgs.UserID)
	if err != nil {
		return nil, NewApiError("Invalid user_id format in argument")
	}
	role, err := models.ParseRole(reqArgs.Role)
	if err != nil {
		return nil, NewApiError("Invalid role")
	}
	if err := h.adminService.SetRole(c.Request.Context(), *principal, userID, role); err != nil {
		return nil, apiErrorFrom(err, "Failed to update user role")
	}
	return nil, nil
}

func (h *JsonApiHandler) deleteUser(c *gin.Context, principal *models.Principal, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := h.parseUserIDArg(args)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := h.adminService.DeleteUser(c.Request.Context(), *principal, userID); err != nil {
		return nil, apiErrorFrom(err, "Failed to delete user")
	}
	return nil, nil
}
