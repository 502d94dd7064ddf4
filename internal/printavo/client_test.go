package printavo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	vars map[string]any
	op   string
}

// fakeAPI records calls and answers each operation with a handler.
type fakeAPI struct {
	t        *testing.T
	handlers map[string]func(w http.ResponseWriter, attempt int, vars map[string]any)
	calls    []recordedCall
	mu       sync.Mutex
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{t: t, handlers: make(map[string]func(http.ResponseWriter, int, map[string]any))}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return api, server
}

func (f *fakeAPI) on(op string, h func(w http.ResponseWriter, attempt int, vars map[string]any)) {
	f.handlers[op] = h
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "buyer@example.com", r.Header.Get("email"))
	assert.Equal(f.t, "secret-token", r.Header.Get("token"))

	var req struct {
		Variables map[string]any `json:"variables"`
		Query     string         `json:"query"`
	}
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	op := operationOf(req.Query)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{op: op, vars: req.Variables})
	attempt := 0
	for _, c := range f.calls {
		if c.op == op {
			attempt++
		}
	}
	handler := f.handlers[op]
	f.mu.Unlock()

	if handler == nil {
		f.t.Errorf("unexpected operation %q", op)
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	handler(w, attempt, req.Variables)
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeAPI) lastVars(op string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == op {
			return f.calls[i].vars
		}
	}
	return nil
}

func operationOf(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '(' || r == '\n' || r == '{'
	})
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := New(Config{
		Endpoint:   endpoint,
		Email:      "buyer@example.com",
		Token:      "secret-token",
		Timeout:    time.Second,
		RateLimit:  60000,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	client.retryOpts.MaxDelay = 5 * time.Millisecond
	return client
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Email: "a@b.co"}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	client, err := New(Config{Email: "a@b.co", Token: "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, client.endpoint)
}

func TestFindCustomer(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("ContactsSearch", func(w http.ResponseWriter, _ int, vars map[string]any) {
		assert.Equal(t, "dana@reyes.co", vars["query"])
		writeData(w, `{"contacts":{"data":[
			{"id":"10","firstName":"Sam","lastName":"Reyes","email":"sam@reyes.co"},
			{"id":"11","firstName":"Dana","lastName":"Other","email":"DANA@reyes.co"},
			{"id":"12","firstName":"Dana","lastName":"Reyes","email":"dana@reyes.co"}
		]}}`)
	})
	client := newTestClient(t, server.URL)

	id, found, err := client.FindCustomer(context.Background(), model.CustomerCriteria{Email: "dana@reyes.co"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "11", id)

	id, found, err = client.FindCustomer(context.Background(), model.CustomerCriteria{Email: "dana@reyes.co", LastName: "reyes"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "12", id)

	_, found, err = client.FindCustomer(context.Background(), model.CustomerCriteria{Email: "dana@reyes.co", FirstName: "Alex"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindCustomer_RetriesTransientAndAmbiguous(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("ContactsSearch", func(w http.ResponseWriter, attempt int, _ map[string]any) {
		switch attempt {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			hijackAndClose(t, w)
		default:
			writeData(w, `{"contacts":{"data":[]}}`)
		}
	})
	client := newTestClient(t, server.URL)

	_, found, err := client.FindCustomer(context.Background(), model.CustomerCriteria{Email: "x@y.z"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 3, api.count("ContactsSearch"))
}

func TestCreateCustomer(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("CustomerCreate", func(w http.ResponseWriter, _ int, vars map[string]any) {
		input := vars["input"].(map[string]any)
		assert.Equal(t, "Dana Reyes", input["companyName"])
		contact := input["primaryContact"].(map[string]any)
		assert.Equal(t, "dana@reyes.co", contact["email"])
		writeData(w, `{"customerCreate":{"id":"c-1","primaryContact":{"id":"ct-9"}}}`)
	})
	client := newTestClient(t, server.URL)

	id, err := client.CreateCustomer(context.Background(), model.NewCustomer{FirstName: "Dana", LastName: "Reyes", Email: "dana@reyes.co"})
	require.NoError(t, err)
	assert.Equal(t, "ct-9", id)
}

func TestCreateOrder(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("QuoteCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
		writeData(w, `{"quoteCreate":{"id":"q-1","visualId":"1042","url":"https://www.printavo.com/quotes/1042"}}`)
	})
	api.on("LineItemGroupCreate", func(w http.ResponseWriter, _ int, vars map[string]any) {
		assert.Equal(t, "q-1", vars["parentId"])
		writeData(w, `{"lineItemGroupCreate":{"id":"g-1","position":1}}`)
	})
	api.on("StatusUpdate", func(w http.ResponseWriter, _ int, vars map[string]any) {
		assert.Equal(t, "st-3", vars["statusId"])
		writeData(w, `{"statusUpdate":{"__typename":"Quote"}}`)
	})
	client := newTestClient(t, server.URL)

	start := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	meta := model.OrderMetadata{
		StartAt:       start,
		DueAt:         start.AddDate(0, 0, 7),
		CustomerDueAt: start.AddDate(0, 0, 14),
		CustomerNote:  "Spring league",
		StatusID:      "st-3",
	}

	order, err := client.CreateOrder(context.Background(), "ct-9", meta)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformOrder{ID: "q-1", VisualID: "1042", URL: "https://www.printavo.com/quotes/1042", GroupID: "g-1"}, order)

	input := api.lastVars("QuoteCreate")["input"].(map[string]any)
	assert.Equal(t, map[string]any{"id": "ct-9"}, input["contact"])
	assert.Equal(t, "2026-05-01T14:00:00Z", input["startAt"])
	assert.Equal(t, "2026-05-08T14:00:00Z", input["dueAt"])
	assert.Equal(t, "2026-05-15T14:00:00Z", input["customerDueAt"])
	assert.Equal(t, "Spring league", input["customerNote"])
	assert.Equal(t, 1, api.count("StatusUpdate"))
}

func TestCreateOrder_GroupFailureKeepsQuoteID(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("QuoteCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
		writeData(w, `{"quoteCreate":{"id":"q-2"}}`)
	})
	api.on("LineItemGroupCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"parent not found"}]}`))
	})
	client := newTestClient(t, server.URL)

	order, err := client.CreateOrder(context.Background(), "ct-1", model.OrderMetadata{})
	require.Error(t, err)
	assert.Equal(t, "q-2", order.ID)
	assert.Empty(t, order.GroupID)
	assert.Equal(t, PermanentFailure, OutcomeOf(err))
	assert.Equal(t, 1, api.count("LineItemGroupCreate"))
}

func TestAddLineItem(t *testing.T) {
	api, server := newFakeAPI(t)
	api.on("LineItemCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
		writeData(w, `{"lineItemCreate":{"id":"li-5"}}`)
	})
	client := newTestClient(t, server.URL)

	item := model.OrderLineItem{
		Style:       "G500",
		Description: "Heavy Cotton Tee",
		Color:       "Black",
		UnitPrice:   decimal.RequireFromString("4.50"),
		Sizes:       model.SizeQuantities{{Size: "S", Quantity: 2}, {Size: "2XL", Quantity: 1}, {Size: "OSFA", Quantity: 4}},
	}
	id, err := client.AddLineItem(context.Background(), model.PlatformOrder{ID: "q-1", GroupID: "g-1"}, 3, item)
	require.NoError(t, err)
	assert.Equal(t, "li-5", id)

	vars := api.lastVars("LineItemCreate")
	assert.Equal(t, "g-1", vars["lineItemGroupId"])
	input := vars["input"].(map[string]any)
	assert.Equal(t, "G500", input["itemNumber"])
	assert.Equal(t, "Heavy Cotton Tee", input["description"])
	assert.InDelta(t, 4.5, input["price"], 1e-9)
	assert.InDelta(t, 3, input["position"], 0)
	assert.Equal(t, []any{
		map[string]any{"size": "size_s", "count": float64(2)},
		map[string]any{"size": "size_2xl", "count": float64(1)},
		map[string]any{"size": "size_other", "count": float64(4)},
	}, input["sizes"])
}

func TestAddLineItem_RequiresGroup(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.AddLineItem(context.Background(), model.PlatformOrder{ID: "q-1"}, 1, model.OrderLineItem{})
	require.Error(t, err)
}

func TestMutations_RetryOnlyTransient(t *testing.T) {
	t.Run("server error is retried", func(t *testing.T) {
		api, server := newFakeAPI(t)
		api.on("LineItemCreate", func(w http.ResponseWriter, attempt int, _ map[string]any) {
			if attempt == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeData(w, `{"lineItemCreate":{"id":"li-1"}}`)
		})
		client := newTestClient(t, server.URL)

		id, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
		require.NoError(t, err)
		assert.Equal(t, "li-1", id)
		assert.Equal(t, 2, api.count("LineItemCreate"))
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		api, server := newFakeAPI(t)
		api.on("LineItemCreate", func(w http.ResponseWriter, attempt int, _ map[string]any) {
			if attempt == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			writeData(w, `{"lineItemCreate":{"id":"li-2"}}`)
		})
		client := newTestClient(t, server.URL)

		_, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
		require.NoError(t, err)
		assert.Equal(t, 2, api.count("LineItemCreate"))
	})

	t.Run("dropped connection is ambiguous", func(t *testing.T) {
		api, server := newFakeAPI(t)
		api.on("LineItemCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
			hijackAndClose(t, w)
		})
		client := newTestClient(t, server.URL)

		_, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
		require.Error(t, err)
		assert.Equal(t, AmbiguousOutcome, OutcomeOf(err))
		assert.Equal(t, model.KindAmbiguousOutcome, common.KindOf(err))
		assert.Equal(t, 1, api.count("LineItemCreate"))
	})

	t.Run("timeout after write is ambiguous", func(t *testing.T) {
		api, server := newFakeAPI(t)
		api.on("LineItemCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
			time.Sleep(200 * time.Millisecond)
			writeData(w, `{"lineItemCreate":{"id":"late"}}`)
		})
		client := newTestClient(t, server.URL)
		client.timeout = 20 * time.Millisecond

		_, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
		require.Error(t, err)
		assert.Equal(t, AmbiguousOutcome, OutcomeOf(err))
		assert.Equal(t, 1, api.count("LineItemCreate"))
	})

	t.Run("graphql error is permanent", func(t *testing.T) {
		api, server := newFakeAPI(t)
		api.on("LineItemCreate", func(w http.ResponseWriter, _ int, _ map[string]any) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Variable $input is invalid","extensions":{"code":"argumentLiteralsIncompatible"}}]}`))
		})
		client := newTestClient(t, server.URL)

		_, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
		require.Error(t, err)
		assert.Equal(t, PermanentFailure, OutcomeOf(err))
		assert.ErrorIs(t, err, common.ErrRemote)
		assert.Contains(t, err.Error(), "Variable $input is invalid")
		assert.Equal(t, 1, api.count("LineItemCreate"))
	})
}

func TestCalls_AuthFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		respond func(w http.ResponseWriter)
	}{
		{name: "http 401", respond: func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnauthorized) }},
		{name: "http 403", respond: func(w http.ResponseWriter) { w.WriteHeader(http.StatusForbidden) }},
		{name: "graphql unauthenticated", respond: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Not logged in","extensions":{"code":"UNAUTHENTICATED"}}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.on("ContactsSearch", func(w http.ResponseWriter, _ int, _ map[string]any) { tt.respond(w) })
			client := newTestClient(t, server.URL)

			_, _, err := client.FindCustomer(context.Background(), model.CustomerCriteria{Email: "x@y.z"})
			require.Error(t, err)
			assert.Equal(t, Fatal, OutcomeOf(err))
			assert.True(t, common.IsFatal(err))
			assert.ErrorIs(t, err, common.ErrUnauthorized)
			assert.Equal(t, 1, api.count("ContactsSearch"))
		})
	}
}

func TestCalls_UnreachableServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := newTestClient(t, endpoint)
	_, err := client.AddLineItem(context.Background(), model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
	require.Error(t, err)
	assert.Equal(t, TransientFailure, OutcomeOf(err))
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
}

func TestCalls_CanceledContext(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.AddLineItem(ctx, model.PlatformOrder{GroupID: "g"}, 1, sampleItem())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, api.count("LineItemCreate"))
}

func TestSizeEnum(t *testing.T) {
	tests := map[string]string{
		"S":    "size_s",
		"2xl":  "size_2xl",
		"YXS":  "size_yxs",
		"24M":  "size_24m",
		"4T":   "size_4t",
		"OSFA": "size_other",
		"LT":   "size_other",
		"":     "size_other",
	}
	for in, want := range tests {
		assert.Equal(t, want, SizeEnum(in), in)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ambiguous", AmbiguousOutcome.String())
	assert.Equal(t, Success, OutcomeOf(nil))
	assert.Equal(t, PermanentFailure, OutcomeOf(assert.AnError))
}

func sampleItem() model.OrderLineItem {
	return model.OrderLineItem{
		Style:       "G500",
		Description: "Tee",
		UnitPrice:   decimal.Zero,
		Sizes:       model.SizeQuantities{{Size: "M", Quantity: 1}},
	}
}

func hijackAndClose(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	require.True(t, ok)
	conn, _, err := hj.Hijack()
	require.NoError(t, err)
	_ = conn.Close()
}
