package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/crm-service/internal/crm"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := httptest.NewServer(NewRouter(crm.NewService(store.NewMemoryStore()), logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, crm.MsgAlive, body["hello"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestCustomerEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var created crm.CustomerPayload
	resp := doJSON(t, http.MethodPost, srv.URL+"/customers",
		models.CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: "+1234567890"}, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.Customer)
	assert.Equal(t, crm.MsgCustomerCreated, created.Message)

	var dup crm.CustomerPayload
	resp = doJSON(t, http.MethodPost, srv.URL+"/customers",
		models.CustomerInput{Name: "Alice 2", Email: "alice@example.com"}, &dup)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, dup.Customer)
	assert.Equal(t, crm.MsgEmailExists, dup.Message)

	var got models.Customer
	resp = doJSON(t, http.MethodGet, srv.URL+"/customers/1", nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice@example.com", got.Email)

	var notFound map[string]string
	resp = doJSON(t, http.MethodGet, srv.URL+"/customers/99", nil, &notFound)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "customer 99 not found", notFound["error"])

	resp = doJSON(t, http.MethodPost, srv.URL+"/customers", `{"name":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkCreateCustomers(t *testing.T) {
	srv := newTestServer(t)

	var payload crm.BulkCustomersPayload
	resp := doJSON(t, http.MethodPost, srv.URL+"/customers/bulk", map[string]interface{}{
		"customers": []models.CustomerInput{
			{Name: "A", Email: "a@x.com"},
			{Name: "A", Email: "a@x.com"},
		},
	}, &payload)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, payload.Customers, 1)
	assert.Equal(t, []string{"Error creating customer with email 'a@x.com': Email already exists."}, payload.Errors)
}

func TestListCustomersPagination(t *testing.T) {
	srv := newTestServer(t)

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/customers", models.CustomerInput{Name: "N", Email: email}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var page store.Page[models.Customer]
	resp := doJSON(t, http.MethodGet, srv.URL+"/customers?first=2", nil, &page)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	require.True(t, page.HasNextPage)

	var next store.Page[models.Customer]
	doJSON(t, http.MethodGet, srv.URL+"/customers?first=2&after="+page.EndCursor, nil, &next)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "c@x.com", next.Items[0].Email)
	assert.False(t, next.HasNextPage)

	resp = doJSON(t, http.MethodGet, srv.URL+"/customers?after=%21%21", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/customers?first=lots", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var failed crm.ProductPayload
	resp := doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"Bad","price":-1,"stock":5}`, &failed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, failed.Product)
	assert.Contains(t, failed.Message, "price")

	var created crm.ProductPayload
	resp = doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"Laptop","price":"10","stock":3}`, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.Product)
	assert.Equal(t, "30", created.TotalAmount.String())

	resp = doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"Mouse","price":"2","stock":20}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var low store.Page[models.Product]
	doJSON(t, http.MethodGet, srv.URL+"/products?low_stock=10", nil, &low)
	require.Len(t, low.Items, 1)
	assert.Equal(t, "Laptop", low.Items[0].Name)

	resp = doJSON(t, http.MethodGet, srv.URL+"/products?price_min=cheap", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var restock crm.RestockPayload
	resp = doJSON(t, http.MethodPost, srv.URL+"/products/restock", nil, &restock)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, restock.Products, 1)
	assert.Equal(t, 13, restock.Products[0].Stock)

	var product models.Product
	resp = doJSON(t, http.MethodGet, srv.URL+"/products/1", nil, &product)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 13, product.Stock)
}

func TestOrderEndpoints(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/customers", models.CustomerInput{Name: "Alice", Email: "alice@example.com"}, nil)
	doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"P1","price":"5","stock":1}`, nil)
	doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"P2","price":"7","stock":1}`, nil)

	var failed crm.OrderPayload
	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", models.OrderInput{CustomerID: 9, ProductIDs: []int64{1}}, &failed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, failed.Order)
	assert.Equal(t, "customer 9 not found", failed.Message)

	var created crm.OrderPayload
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", models.OrderInput{CustomerID: 1, ProductIDs: []int64{1, 2}}, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.Order)
	assert.Equal(t, "12", created.Order.TotalAmount.String())

	var page store.Page[models.Order]
	doJSON(t, http.MethodGet, srv.URL+"/orders?customer_name=ali&product_name=p2", nil, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.Order.ID, page.Items[0].ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/orders/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var summary models.Summary
	doJSON(t, http.MethodGet, srv.URL+"/report", nil, &summary)
	assert.Equal(t, int64(1), summary.Orders)
	assert.Equal(t, "12", summary.Revenue.String())
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/customers", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
