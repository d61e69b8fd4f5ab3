package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
)

type samplePayload struct {
	Title string `json:"title" validate:"required,min=3"`
	Pace  string `json:"pace" validate:"required,oneof=chill speed race"`
	Limit int    `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

func bodyRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyValid(t *testing.T) {
	var payload samplePayload
	err := DecodeJSONBody(bodyRequest(`{"title":"Sunday Hills","pace":"chill"}`), &payload)
	require.NoError(t, err)
	assert.Equal(t, "Sunday Hills", payload.Title)
	assert.Equal(t, "chill", payload.Pace)
}

func TestDecodeJSONBodyRejectsMalformedJSON(t *testing.T) {
	var payload samplePayload
	err := DecodeJSONBody(bodyRequest(`{"title":`), &payload)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var payload samplePayload
	err := DecodeJSONBody(bodyRequest(`{"title":"Sunday Hills","pace":"chill","admin":true}`), &payload)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyCollectsFieldErrors(t *testing.T) {
	var payload samplePayload
	err := DecodeJSONBody(bodyRequest(`{"title":"ab","pace":"sprint","limit":500}`), &payload)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "expected field error map, got %T", typed.Details())
	assert.Equal(t, "must be at least 3", details["title"])
	assert.Equal(t, "must be one of chill speed race", details["pace"])
	assert.Equal(t, "must be at most 100", details["limit"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	value, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, value)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	value, err = ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	_, err = ParseQueryInt(req, "limit", 25, 1, 100)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	req = httptest.NewRequest(http.MethodGet, "/?limit=9999", nil)
	_, err = ParseQueryInt(req, "limit", 25, 1, 100)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
