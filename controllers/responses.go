package controllers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/Kariqs/readpage-api/models"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	// Standard response messages
	msgInvalidInput          = "invalid input"
	msgInternalServerError   = "Internal server error"
	msgInvalidCredentials    = "Invalid credentials"
	msgAccountNotActivated   = "Account not activated, check your email to verify your account."
	msgFailedToGenerateToken = "failed to generate token"
	msgInvalidActivationLink = "Invalid or expired verification link"
	msgActivationSuccess     = "Email verified successfully."
	msgUserCreated           = "User registered successfully. Check your email to verify your account."
	msgResetOTPSent          = "If an account exists for this email, a password reset code has been sent."
	msgInvalidOTP            = "Invalid or expired reset code"
	msgPasswordReset         = "Password reset successful"
	msgPasswordChanged       = "Password changed successfully"
	msgWrongPassword         = "Current password is incorrect"
	msgUnauthenticated       = "Authentication required"
)

func init() {
	// Report json field names instead of Go field names in validation errors.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	}
}

func sendJSONResponse(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"message": message})
}

// respondWithError writes err as the response. Internal failures are logged
// and hidden behind a generic message.
func respondWithError(ctx *gin.Context, logger *zap.Logger, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(msgInternalServerError, err)
	}

	status := appErr.Kind.HTTPStatus()
	switch appErr.Kind {
	case apperrors.KindInternal:
		logger.Error(appErr.Message,
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Error(appErr.Err),
		)
		sendErrorResponse(ctx, status, msgInternalServerError)
		return
	case apperrors.KindGateway:
		logger.Warn("Payment gateway error", zap.String("message", appErr.Message), zap.Error(appErr.Err))
	}

	body := gin.H{"message": appErr.Message}
	if appErr.Details != nil {
		if appErr.Kind == apperrors.KindValidation {
			body["errors"] = appErr.Details
		} else {
			body["error"] = appErr.Details
		}
	}
	sendJSONResponse(ctx, status, body)
}

// bindError turns a binding failure into a Validation error listing each
// failing field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(msgInvalidInput)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperrors.ValidationDetails(msgInvalidInput, fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "valid email required"
	case "min":
		if fe.Kind() == reflect.String {
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		}
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "len":
		return fe.Field() + " must be " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

func parseID(ctx *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("invalid " + param)
	}
	return uint(id), nil
}

// currentUser reads the user RequireAuth stored. Handlers behind the
// middleware always have one.
func currentUser(ctx *gin.Context) (*models.User, error) {
	user, ok := middlewares.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.Unauthorized(msgUnauthenticated)
	}
	return user, nil
}
