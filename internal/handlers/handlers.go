package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/example/rekognizer/internal/grpcclient"
	"github.com/example/rekognizer/internal/repository"
	"github.com/example/rekognizer/internal/usecase"
)

// MaxBodySize bounds JSON request bodies.
const MaxBodySize = 1 << 20

const (
	codeBadRequest      = "BAD_REQUEST"
	codeValidationError = "VALIDATION_ERROR"
	codeUnexpected      = "UNEXPECTED_ERROR"
)

type Verifier interface {
	Verify(ctx context.Context, imageURLs []string) ([]usecase.VerificationResult, error)
}

type Identifier interface {
	Identify(ctx context.Context, imageURL string) (*grpcclient.User, error)
}

type Enroller interface {
	Enroll(ctx context.Context, userID int64, imageURLs []string) ([]repository.Enrollment, error)
	GetSummary(ctx context.Context) (*usecase.EnrollmentSummary, error)
}

// Services groups the use cases served over HTTP.
type Services struct {
	Verifier   Verifier
	Identifier Identifier
	Enroller   Enroller
}

type verifyRequest struct {
	ImageURLs []string `json:"image_urls" binding:"required,min=1,dive,url"`
}

type identifyRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
}

type enrollRequest struct {
	UserID    int64    `json:"user_id" binding:"required,gt=0"`
	ImageURLs []string `json:"image_urls" binding:"required,min=1,dive,url"`
}

type enrollResponse struct {
	UserID        int64  `json:"user_id"`
	Enrolled      int    `json:"enrolled"`
	EnrollmentIDs []uint `json:"enrollment_ids"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. Enrollment routes sit behind authMiddleware.
func RegisterRoutes(router *gin.Engine, svc Services, authMiddleware gin.HandlerFunc) {
	router.Use(limitBody(MaxBodySize))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/verify", func(c *gin.Context) {
		var req verifyRequest
		if !bindJSON(c, &req) {
			return
		}
		results, err := svc.Verifier.Verify(c.Request.Context(), req.ImageURLs)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})

	router.POST("/identify", func(c *gin.Context) {
		var req identifyRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := svc.Identifier.Identify(c.Request.Context(), req.ImageURL)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	})

	protected := router.Group("/", authMiddleware)

	protected.POST("/enroll", func(c *gin.Context) {
		var req enrollRequest
		if !bindJSON(c, &req) {
			return
		}
		enrolled, err := svc.Enroller.Enroll(c.Request.Context(), req.UserID, req.ImageURLs)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		ids := make([]uint, len(enrolled))
		for i, e := range enrolled {
			ids[i] = e.ID
		}
		c.JSON(http.StatusCreated, enrollResponse{UserID: req.UserID, Enrolled: len(enrolled), EnrollmentIDs: ids})
	})

	protected.GET("/enrollments/summary", func(c *gin.Context) {
		summary, err := svc.Enroller.GetSummary(c.Request.Context())
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		writeError(c, http.StatusBadRequest, codeValidationError, validationMessage(validationErrs))
		return false
	}
	writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
	return false
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, len(errs))
	for i, fe := range errs {
		parts[i] = fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// writeUseCaseError maps domain failures to 400 with their code; anything else is a generic 500.
func writeUseCaseError(c *gin.Context, err error) {
	var domainErr *usecase.DomainError
	if errors.As(err, &domainErr) {
		writeError(c, http.StatusBadRequest, domainErr.Code, err.Error())
		return
	}
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, codeUnexpected, "an unexpected error occurred")
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
