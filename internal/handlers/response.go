package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modtroubleshooter/engine/internal/archive"
	"github.com/modtroubleshooter/engine/internal/nexus"
	"github.com/modtroubleshooter/engine/internal/pipeline"
)

// errorResponse is the JSON envelope every failed request returns.
type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

// WriteError writes a one-line error message as a JSON response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// Response is the JSON envelope for a successful request that carries a
// payload or a one-line message.
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteSuccess writes a 200 JSON response carrying a one-line message.
func WriteSuccess(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, Response{Message: message})
}

// errorKindToStatus maps a registry/archive/pipeline error to its HTTP status
// code: PremiumRequired->402, Unauthorized->401, NotFound->404,
// Cancelled->499, otherwise 500. handleAPIError writes its result, and the
// handlers that branch on premium-only or cancelled errors themselves write
// the same 402 and 499 codes. A rejected path-traversal entry is deliberately left
// to fall through to 500: it is a malformed/hostile archive, not a missing
// resource, and collapsing it into NotFound would hide that distinction
// from callers trying to tell "nothing there" from "archive misbehaved"
// apart.
func errorKindToStatus(err error) (int, string) {
	var modErr *pipeline.ModFailureError
	if errors.As(err, &modErr) {
		status, msg := errorKindToStatus(modErr.Err)
		return status, "mod " + modErr.ModName + ": " + msg
	}

	switch {
	case errors.Is(err, nexus.ErrPremiumOnly):
		return http.StatusPaymentRequired, "This feature requires a Nexus Mods Premium account"
	case errors.Is(err, nexus.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid or missing Nexus API key"
	case errors.Is(err, nexus.ErrNoAPIKey):
		return http.StatusUnauthorized, "Nexus API key not configured"
	case errors.Is(err, nexus.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, context.Canceled):
		return 499, "Request cancelled"
	case errors.Is(err, nexus.ErrRateLimited):
		return http.StatusTooManyRequests, "Nexus API rate limit exceeded, please try again later"
	case errors.Is(err, nexus.ErrServerError):
		return http.StatusBadGateway, "Nexus server error"
	case errors.Is(err, nexus.ErrGraphQLErrors):
		return http.StatusInternalServerError, "Nexus GraphQL query failed"
	case errors.Is(err, archive.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "Mod archive is too large"
	case errors.Is(err, archive.ErrDownloadFailed):
		return http.StatusBadGateway, "Failed to download mod archive"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// handleAPIError logs the full error and writes the mapped status/message.
func handleAPIError(w http.ResponseWriter, action string, err error) {
	slog.Error("API error", "action", action, "error", err)
	status, message := errorKindToStatus(err)
	WriteError(w, status, message)
}
