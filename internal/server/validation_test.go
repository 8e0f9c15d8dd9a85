package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyContext(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindBodyRejectsMalformedJSON(t *testing.T) {
	var req inviteRequest
	err := BindBody(bodyContext(`{"email":`), &req)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestBindBodyReportsTypeMismatch(t *testing.T) {
	var req startDonationRequest
	err := BindBody(bodyContext(`{"amount":"ten","donor_email":"a@b.org"}`), &req)

	var vErr *ValidationFailure
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, msgBodyInvalid, vErr.Message)
	require.Len(t, vErr.Details, 1)
	assert.Equal(t, "amount", vErr.Details[0].Field)
}

func TestBindBodyListsEveryViolatedField(t *testing.T) {
	var req inviteRequest
	err := BindBody(bodyContext(`{"email":"not-an-email","role":"owner"}`), &req)

	var vErr *ValidationFailure
	require.ErrorAs(t, err, &vErr)
	assert.ElementsMatch(t, []FieldError{
		{Field: "email", Message: "must be a valid email"},
		{Field: "role", Message: "must be one of: admin, editor, member, viewer"},
	}, vErr.Details)
}

func TestBindBodyAcceptsValidInput(t *testing.T) {
	var req startDonationRequest
	err := BindBody(bodyContext(`{"amount":2500,"donor_email":"donor@example.org","currency":"usd"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), req.Amount)
	assert.Equal(t, "usd", req.Currency)
}

func TestBindBodyEnforcesMinimumDonation(t *testing.T) {
	var req startDonationRequest
	err := BindBody(bodyContext(`{"amount":99,"donor_email":"donor@example.org"}`), &req)

	var vErr *ValidationFailure
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Details, 1)
	assert.Equal(t, FieldError{Field: "amount", Message: "must be at least 100"}, vErr.Details[0])
}

func TestBindQueryDefaultsAndBounds(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	var query PageQuery
	require.NoError(t, BindQuery(c, &query))
	assert.Equal(t, 1, query.Page)
	assert.Equal(t, 10, query.Limit)
	assert.Equal(t, "desc", query.SortOrder)

	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=500&sortBy=email", nil)
	query = PageQuery{}
	err := BindQuery(c, &query)

	var vErr *ValidationFailure
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, msgQueryInvalid, vErr.Message)
	fields := make([]string, 0, len(vErr.Details))
	for _, d := range vErr.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"limit", "sortBy"}, fields)
}

func TestBindParamsRequiresUUID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "acme"}}

	var params IDParams
	err := BindParams(c, &params)

	var vErr *ValidationFailure
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, msgParamsInvalid, vErr.Message)
	assert.Equal(t, []FieldError{{Field: "id", Message: "must be a valid UUID"}}, vErr.Details)
}
