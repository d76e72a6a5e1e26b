package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/services"
	"github.com/Kariqs/readpage-api/storage"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	resetOTPTTL   = 10 * time.Minute
	profileFolder = "profiles"
)

// Mailer sends account mail.
type Mailer interface {
	SendVerificationEmail(to, name, verificationURL string) error
	SendPasswordResetOTP(to, name, otp string) error
}

type AuthConfig struct {
	JWTSecret             string
	JWTTTL                time.Duration
	FrontendURL           string
	SkipEmailVerification bool
}

type AuthController struct {
	db     *gorm.DB
	cfg    AuthConfig
	mailer Mailer
	images storage.ImageStore
	orders *services.OrderService
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthController(db *gorm.DB, cfg AuthConfig, mailer Mailer, images storage.ImageStore, orders *services.OrderService, logger *zap.Logger) *AuthController {
	return &AuthController{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
		images: images,
		orders: orders,
		logger: logger,
		now:    time.Now,
	}
}

// CustomerSummary is a customer row in the admin listing.
type CustomerSummary struct {
	models.User
	TotalOrders int64 `json:"totalOrders"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkUnique reports the first of email, username or phone already used by
// another account. excludeID skips the caller's own row on profile updates.
func (c *AuthController) checkUnique(ctx context.Context, email, username, phone string, excludeID uint) error {
	checks := []struct {
		column, value, message string
	}{
		{"email", email, "Email already in use"},
		{"username", username, "Username already taken"},
		{"phone", phone, "Phone number already in use"},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		var count int64
		query := c.db.WithContext(ctx).Model(&models.User{}).Where(check.column+" = ?", check.value)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		if err := query.Count(&count).Error; err != nil {
			return apperrors.Internal("failed to check existing users", err)
		}
		if count > 0 {
			return apperrors.Conflict(check.message)
		}
	}
	return nil
}

func (c *AuthController) issueToken(user *models.User) (string, error) {
	token, err := utils.GenerateJWT(user.ID, string(user.Role), c.cfg.JWTSecret, c.cfg.JWTTTL)
	if err != nil {
		return "", apperrors.Internal(msgFailedToGenerateToken, err)
	}
	return token, nil
}

func (c *AuthController) verificationURL(token string) string {
	return c.cfg.FrontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// Register creates a customer account and sends the verification mail.
func (c *AuthController) Register(ctx *gin.Context) {
	var data models.RegisterData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}
	data.Email = normalizeEmail(data.Email)
	data.Username = strings.TrimSpace(data.Username)
	data.Phone = strings.TrimSpace(data.Phone)

	if err := c.checkUnique(ctx.Request.Context(), data.Email, data.Username, data.Phone, 0); err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	hashedPassword, err := utils.HashPassword(data.Password)
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to hash password", err))
		return
	}

	verificationToken, err := utils.GenerateCode(32)
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to generate verification token", err))
		return
	}

	user := models.User{
		Name:            strings.TrimSpace(data.Name),
		Username:        data.Username,
		Email:           data.Email,
		Phone:           data.Phone,
		Address:         data.Address,
		PasswordHash:    hashedPassword,
		Role:            models.RoleCustomer,
		IsEmailVerified: c.cfg.SkipEmailVerification,
	}
	if !c.cfg.SkipEmailVerification {
		user.EmailVerificationToken = verificationToken
	}
	if err := c.db.WithContext(ctx.Request.Context()).Create(&user).Error; err != nil {
		respondWithError(ctx, c.logger, c.uniqueViolation(ctx.Request.Context(), err, data.Email, data.Username, data.Phone, 0, "failed to create user"))
		return
	}

	if !c.cfg.SkipEmailVerification {
		if err := c.mailer.SendVerificationEmail(user.Email, user.Name, c.verificationURL(verificationToken)); err != nil {
			// Registration stands; the user can ask for verification again.
			c.logger.Warn("Failed to send verification email", zap.String("email", user.Email), zap.Error(err))
		}
	}

	token, err := c.issueToken(&user)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	c.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message": msgUserCreated,
		"user":    user,
		"token":   token,
	})
}

// Login accepts an email or username in the email field.
func (c *AuthController) Login(ctx *gin.Context) {
	var data models.LoginData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}

	identifier := strings.TrimSpace(data.Email)
	var user models.User
	err := c.db.WithContext(ctx.Request.Context()).
		Where("email = ? OR username = ?", normalizeEmail(identifier), identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sendErrorResponse(ctx, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to look up user", err))
		return
	}

	if err := utils.ComparePasswords(user.PasswordHash, data.Password); err != nil {
		sendErrorResponse(ctx, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	if !user.IsEmailVerified && !c.cfg.SkipEmailVerification {
		sendErrorResponse(ctx, http.StatusForbidden, msgAccountNotActivated)
		return
	}

	token, err := c.issueToken(&user)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"user": user, "token": token})
}

func (c *AuthController) VerifyEmail(ctx *gin.Context) {
	token := strings.TrimSpace(ctx.Query("token"))
	if token == "" {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidActivationLink)
		return
	}

	result := c.db.WithContext(ctx.Request.Context()).Model(&models.User{}).
		Where("email_verification_token = ?", token).
		Updates(map[string]any{
			"is_email_verified":        true,
			"email_verification_token": "",
		})
	if result.Error != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to verify email", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidActivationLink)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgActivationSuccess})
}

// ForgotPassword answers the same way whether or not the account exists.
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	type forgotPasswordBody struct {
		Email string `json:"email" binding:"required,email"`
	}

	var body forgotPasswordBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}

	var user models.User
	err := c.db.WithContext(ctx.Request.Context()).Where("email = ?", normalizeEmail(body.Email)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgResetOTPSent})
		return
	case err != nil:
		respondWithError(ctx, c.logger, apperrors.Internal("failed to look up user", err))
		return
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to generate reset code", err))
		return
	}
	expires := c.now().Add(resetOTPTTL)
	if err := c.db.WithContext(ctx.Request.Context()).Model(&user).Updates(map[string]any{
		"password_reset_token":   otp,
		"password_reset_expires": expires,
	}).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("unable to save reset code", err))
		return
	}

	if err := c.mailer.SendPasswordResetOTP(user.Email, user.Name, otp); err != nil {
		c.logger.Warn("Failed to send password reset email", zap.String("email", user.Email), zap.Error(err))
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgResetOTPSent})
}

func (c *AuthController) ResetPassword(ctx *gin.Context) {
	type resetPasswordBody struct {
		Email    string `json:"email" binding:"required,email"`
		OTP      string `json:"otp" binding:"required,len=6"`
		Password string `json:"password" binding:"required,min=6"`
	}

	var body resetPasswordBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}

	var user models.User
	err := c.db.WithContext(ctx.Request.Context()).Where("email = ?", normalizeEmail(body.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidOTP)
		return
	}
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to look up user", err))
		return
	}

	if user.PasswordResetToken == "" ||
		subtle.ConstantTimeCompare([]byte(user.PasswordResetToken), []byte(body.OTP)) != 1 ||
		user.PasswordResetExpires == nil ||
		c.now().After(*user.PasswordResetExpires) {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidOTP)
		return
	}

	hashedPassword, err := utils.HashPassword(body.Password)
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to hash password", err))
		return
	}

	if err := c.db.WithContext(ctx.Request.Context()).Model(&user).Updates(map[string]any{
		"password_hash":          hashedPassword,
		"password_reset_token":   "",
		"password_reset_expires": nil,
	}).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("unable to reset password", err))
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgPasswordReset})
}

// uniqueViolation turns a duplicate-key write error into the same Conflict
// checkUnique reports. A concurrent request can claim a value between the
// check and the write.
func (c *AuthController) uniqueViolation(ctx context.Context, err error, email, username, phone string, excludeID uint, message string) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Internal(message, err)
	}
	if conflict := c.checkUnique(ctx, email, username, phone, excludeID); conflict != nil {
		return conflict
	}
	return apperrors.Conflict("Account details already in use")
}

func (c *AuthController) GetProfile(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile takes multipart fields plus an optional profilePhoto file.
func (c *AuthController) UpdateProfile(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	reqCtx := ctx.Request.Context()

	updates := map[string]any{}
	var username, phone string
	if name, ok := ctx.GetPostForm("name"); ok {
		if name = strings.TrimSpace(name); name == "" {
			respondWithError(ctx, c.logger, apperrors.Validation("name cannot be empty"))
			return
		}
		updates["name"] = strings.TrimSpace(name)
	}
	if value, ok := ctx.GetPostForm("username"); ok {
		if username = strings.TrimSpace(value); len(username) < 3 {
			respondWithError(ctx, c.logger, apperrors.Validation("username must be at least 3 characters"))
			return
		}
		updates["username"] = username
	}
	if value, ok := ctx.GetPostForm("phone"); ok {
		if phone = strings.TrimSpace(value); phone == "" {
			respondWithError(ctx, c.logger, apperrors.Validation("phone cannot be empty"))
			return
		}
		updates["phone"] = phone
	}
	if address, ok := ctx.GetPostForm("address"); ok {
		updates["address"] = address
	}

	if err := c.checkUnique(reqCtx, "", username, phone, user.ID); err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	photo, err := optionalFile(ctx, "profilePhoto")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	oldPhoto := user.ProfilePhoto.Data()
	var stored *models.ImageRef
	if photo != nil {
		if c.images == nil {
			respondWithError(ctx, c.logger, apperrors.Internal("image storage is not configured", nil))
			return
		}
		ref, err := c.images.Save(reqCtx, photo, profileFolder)
		if err != nil {
			respondWithError(ctx, c.logger, err)
			return
		}
		stored = &ref
		updates["profile_photo"] = datatypes.NewJSONType(ref)
	}

	if len(updates) == 0 {
		respondWithError(ctx, c.logger, apperrors.Validation("nothing to update"))
		return
	}

	if err := c.db.WithContext(reqCtx).Model(user).Updates(updates).Error; err != nil {
		if stored != nil {
			c.discardImage(reqCtx, *stored)
		}
		respondWithError(ctx, c.logger, c.uniqueViolation(reqCtx, err, "", username, phone, user.ID, "failed to update profile"))
		return
	}
	if stored != nil && !oldPhoto.IsZero() {
		c.discardImage(reqCtx, oldPhoto)
	}

	var updated models.User
	if err := c.db.WithContext(reqCtx).First(&updated, user.ID).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to reload profile", err))
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Profile updated successfully", "user": updated})
}

func (c *AuthController) ChangePassword(ctx *gin.Context) {
	type changePasswordBody struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=6"`
	}

	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	var body changePasswordBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, c.logger, bindError(err))
		return
	}

	if err := utils.ComparePasswords(user.PasswordHash, body.CurrentPassword); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgWrongPassword)
		return
	}

	hashedPassword, err := utils.HashPassword(body.NewPassword)
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to hash password", err))
		return
	}
	if err := c.db.WithContext(ctx.Request.Context()).Model(user).Update("password_hash", hashedPassword).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to change password", err))
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgPasswordChanged})
}

// GetCustomers lists customers with their order counts. Admin only.
func (c *AuthController) GetCustomers(ctx *gin.Context) {
	page, limit := utils.ParsePage(ctx.Query("page"), ctx.Query("limit"), 10, 100)
	reqCtx := ctx.Request.Context()

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("role = ?", models.RoleCustomer)
		if search := strings.TrimSpace(ctx.Query("search")); search != "" {
			like := "%" + search + "%"
			db = db.Where("name LIKE ? OR email LIKE ? OR username LIKE ?", like, like, like)
		}
		return db
	}

	var count int64
	if err := c.db.WithContext(reqCtx).Model(&models.User{}).Scopes(filter).Count(&count).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to count customers", err))
		return
	}

	var users []models.User
	if err := c.db.WithContext(reqCtx).Scopes(filter).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(utils.Offset(page, limit)).
		Find(&users).Error; err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to fetch customers", err))
		return
	}

	orderCounts := map[uint]int64{}
	if len(users) > 0 {
		ids := make([]uint, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		var rows []struct {
			UserID uint
			Count  int64
		}
		if err := c.db.WithContext(reqCtx).Model(&models.Order{}).
			Select("user_id, COUNT(*) AS count").
			Where("user_id IN ?", ids).
			Group("user_id").
			Scan(&rows).Error; err != nil {
			respondWithError(ctx, c.logger, apperrors.Internal("failed to count customer orders", err))
			return
		}
		for _, row := range rows {
			orderCounts[row.UserID] = row.Count
		}
	}

	customers := make([]CustomerSummary, len(users))
	for i, u := range users {
		customers[i] = CustomerSummary{User: u, TotalOrders: orderCounts[u.ID]}
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"customers": customers,
		"metadata":  utils.NewPagination(count, page, limit),
	})
}

// GetUserWithOrders is the admin view of one account.
func (c *AuthController) GetUserWithOrders(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	var user models.User
	err = c.db.WithContext(ctx.Request.Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondWithError(ctx, c.logger, apperrors.NotFound("User not found"))
		return
	}
	if err != nil {
		respondWithError(ctx, c.logger, apperrors.Internal("failed to fetch user", err))
		return
	}

	orders, err := c.orders.ListForUser(ctx.Request.Context(), user.ID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"user": user, "orders": orders})
}

// GetMyOrders returns every order of the caller, newest first.
func (c *AuthController) GetMyOrders(ctx *gin.Context) {
	user, err := currentUser(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	orders, err := c.orders.ListForUser(ctx.Request.Context(), user.ID)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

func (c *AuthController) discardImage(ctx context.Context, ref models.ImageRef) {
	if err := c.images.Delete(ctx, ref); err != nil {
		c.logger.Warn("Failed to delete image", zap.String("path", ref.Path), zap.Error(err))
	}
}

// optionalFile returns nil when the field was not sent or the request is
// not multipart.
func optionalFile(ctx *gin.Context, field string) (*multipart.FileHeader, error) {
	file, err := ctx.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Validation("invalid " + field + " upload")
	}
	return file, nil
}
