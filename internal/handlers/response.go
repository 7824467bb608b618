package handlers

import (
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondList wraps list results the way the frontend pages them.
func RespondList(c *gin.Context, count int64, results any) {
  c.JSON(http.StatusOK, gin.H{
    "count":   count,
    "results": results,
  })
}

func intQuery(c *gin.Context, name string, fallback int) int {
  raw := c.Query(name)
  if raw == "" {
    return fallback
  }
  value, err := strconv.Atoi(raw)
  if err != nil {
    return fallback
  }
  return value
}
