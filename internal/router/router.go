// Package router wires the HTTP surface: the POST /graphql endpoint driving
// query/mutation execution and SSE-streamed subscriptions, the static
// GET /playground explorer and a storage health probe.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"linkfeed/internal/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type middleware func(http.Handler) http.Handler

type handler struct {
	schema *graphql.Schema
	db     pinger
}

// graphParams is the GraphQL request shape extracted from the HTTP request.
type graphParams struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Incremental delivery directives are not supported by this gateway.
var incrementalDeliveryPattern = regexp.MustCompile(`@(defer|stream)\b`)

// New assembles the HTTP handler: logging, user resolution and the three
// endpoints.
func New(schema *graphql.Schema, db pinger, withUser middleware) http.Handler {
	h := &handler{
		schema: schema,
		db:     db,
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(withUser)
	router.Post(`/graphql`, h.serveGraphQL)
	router.Get(`/playground`, h.servePlayground)
	router.Get(`/ping`, h.ping)

	return router
}

func (h *handler) serveGraphQL(response http.ResponseWriter, request *http.Request) {
	params, err := extractParams(request)
	if err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	if incrementalDeliveryPattern.MatchString(params.Query) {
		writeJSON(response, map[string]string{"error": "Stream not supported at the moment"})
		return
	}

	if operationIsSubscription(params.Query, params.OperationName) {
		h.serveSubscription(response, request, params)
		return
	}

	result := h.schema.Exec(request.Context(), params.Query, params.OperationName, params.Variables)
	writeJSON(response, result)
}

// serveSubscription switches the connection to a server-sent-event stream and
// writes one data frame per emitted event. The subscription ends when the
// client disconnects.
func (h *handler) serveSubscription(response http.ResponseWriter, request *http.Request, params *graphParams) {
	flusher, ok := response.(http.Flusher)
	if !ok {
		http.Error(response, "streaming unsupported by the connection", http.StatusInternalServerError)
		return
	}

	events, err := h.schema.Subscribe(request.Context(), params.Query, params.OperationName, params.Variables)
	if err != nil {
		writeJSON(response, map[string][]string{"errors": {err.Error()}})
		return
	}

	response.Header().Set("Content-Type", "text/event-stream")
	response.Header().Set("Cache-Control", "no-cache,no-transform")
	response.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering, frames must reach the client immediately.
	response.Header().Set("X-Accel-Buffering", "no")
	response.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := request.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Log.Debugln("Error marshaling subscription event: ", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(response, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handler) servePlayground(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := response.Write([]byte(playgroundHTML))
	if err != nil {
		http.Error(response, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *handler) ping(response http.ResponseWriter, request *http.Request) {
	if err := h.db.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `h.db.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// extractParams pulls query, operation name and variables from the JSON body,
// with URL query-string values taking precedence.
func extractParams(request *http.Request) (*graphParams, error) {
	params := &graphParams{}

	body, err := io.ReadAll(request.Body)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, params); err != nil {
			return nil, fmt.Errorf("malformed request body: %w", err)
		}
	}

	queryString := request.URL.Query()
	if value := queryString.Get("query"); value != "" {
		params.Query = value
	}
	if value := queryString.Get("operationName"); value != "" {
		params.OperationName = value
	}
	if value := queryString.Get("variables"); value != "" {
		if err := json.Unmarshal([]byte(value), &params.Variables); err != nil {
			return nil, fmt.Errorf("malformed variables parameter: %w", err)
		}
	}

	return params, nil
}

func writeJSON(response http.ResponseWriter, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response: ", zap.Error(err))
	}
}
