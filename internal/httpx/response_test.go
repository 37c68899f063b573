package httpx

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kyri56xcaesar/nexushub/internal/domain/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: errors.Invalid("title is required"), want: http.StatusBadRequest},
		{name: "unauthenticated", err: errors.ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "bad credentials", err: errors.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "forbidden", err: errors.Denied("nope"), want: http.StatusForbidden},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", errors.ErrTaskNotFound), want: http.StatusNotFound},
		{name: "conflict", err: errors.ErrAlreadyMember, want: http.StatusConflict},
		{name: "anything else", err: stderrors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

type bindTarget struct {
	Title string `json:"title" binding:"required,max=10"`
	Email string `json:"email" binding:"omitempty,email"`
}

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/bind", func(c *gin.Context) {
		var req bindTarget
		if !BindJSON(c, &req) {
			return
		}
		OK(c, http.StatusCreated, gin.H{"title": req.Title})
	})
	r.GET("/boom", func(c *gin.Context) { Error(c, stderrors.New("db exploded")) })

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   struct {
			status  int
			success bool
			message string
		}
	}{
		{
			name: "valid body", method: http.MethodPost, path: "/bind", body: `{"title":"ok"}`,
			want: struct {
				status  int
				success bool
				message string
			}{status: http.StatusCreated, success: true},
		},
		{
			name: "missing field", method: http.MethodPost, path: "/bind", body: `{}`,
			want: struct {
				status  int
				success bool
				message string
			}{status: http.StatusBadRequest, message: "title is required"},
		},
		{
			name: "bad email", method: http.MethodPost, path: "/bind", body: `{"title":"x","email":"nope"}`,
			want: struct {
				status  int
				success bool
				message string
			}{status: http.StatusBadRequest, message: "email must be a valid email"},
		},
		{
			name: "malformed json", method: http.MethodPost, path: "/bind", body: `{`,
			want: struct {
				status  int
				success bool
				message string
			}{status: http.StatusBadRequest, message: "invalid input"},
		},
		{
			name: "internal error is not echoed", method: http.MethodGet, path: "/boom",
			want: struct {
				status  int
				success bool
				message string
			}{status: http.StatusInternalServerError, message: errors.ErrInternalServer.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want.success, body["success"])
			if tt.want.message != "" {
				assert.Equal(t, tt.want.message, body["message"])
			}
		})
	}
}
