package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/utils"
)

// RequestTimeout bounds every database round trip made by a handler
var RequestTimeout = 5 * time.Second

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), RequestTimeout)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return utils.ValidationError("Invalid input")
	}
	return nil
}

// pathID parses the hex ObjectID route variable key
func pathID(r *http.Request, key, label string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[key])
	if err != nil {
		return primitive.NilObjectID, utils.ValidationError("Invalid %s ID", label)
	}
	return id, nil
}

// pagination reads page/limit, defaulting to 1/20 and capping limit at 100
func pagination(r *http.Request) (page, limit int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func optionalFloat(r *http.Request, key string) (*float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, utils.ValidationError("%s must be a number", key)
	}
	return &v, nil
}

func muxVar(r *http.Request, key string) (string, bool) {
	v, ok := mux.Vars(r)[key]
	return v, ok
}
