package sigit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vendorFake scripts a minimal vendor: a login endpoint plus a queue of
// canned responses for the data endpoints.
type vendorFake struct {
	t          *testing.T
	logins     int
	dataCalls  int
	respond    func(call int, w http.ResponseWriter, r *http.Request)
	lastHeader RequestHeader
}

func (f *vendorFake) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sigit/user/login" {
			f.logins++
			json.NewEncoder(w).Encode(map[string]string{"user_token": "tok-1"})
			return
		}

		var env struct {
			Header RequestHeader `json:"header"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&env))
		f.lastHeader = env.Header

		f.dataCalls++
		f.respond(f.dataCalls, w, r)
	}
}

func newTestClient(t *testing.T, fake *vendorFake) (*Client, *Session) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := testVendorConfig(srv.URL)
	session := NewSession(cfg)
	auth := NewAuthManager(session, cfg)
	require.NoError(t, auth.Login(context.Background()))
	return NewClient(session, auth, cfg), session
}

func writeEnvelope(w http.ResponseWriter, resultCode, token string, body interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"header": map[string]string{
			"result_code": resultCode,
			"user_token":  token,
		},
		"body": body,
	})
}

func TestSearchTerminalsByStatus_Success(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "ATM", r.URL.Query().Get("terminal_type"))
		writeEnvelope(w, "000", "tok-1", []interface{}{
			map[string]interface{}{"terminalId": "8601"},
			map[string]interface{}{"terminalId": "8602"},
		})
	}}
	client, _ := newTestClient(t, fake)

	items, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "8601", items[0]["terminalId"])
	assert.Equal(t, "tok-1", fake.lastHeader.UserToken)
	assert.Equal(t, "primary", fake.lastHeader.LoggedUser)
}

func TestCall_AbsentBodyMeansNoData(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "000", "", nil)
	}}
	client, _ := newTestClient(t, fake)

	items, err := client.FetchTerminalCashInfo(context.Background(), "8601")
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestCall_UnauthorizedRefreshesWithoutConsumingRetry(t *testing.T) {
	fake := &vendorFake{t: t}
	fake.respond = func(call int, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, "000", "", []interface{}{})
	}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.NoError(t, err)

	// One login for the test setup, one for the refresh, and the data
	// call retried exactly once.
	assert.Equal(t, 2, fake.logins)
	assert.Equal(t, 2, fake.dataCalls)
}

func TestCall_SecondUnauthorizedIsFatal(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientAPI)
	assert.Equal(t, 2, fake.dataCalls, "refresh retries the call once, then gives up")
}

func TestCall_NotFoundIsTerminal(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.FetchTerminalDetails(context.Background(), "9999", "HARD")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalAPI)
	assert.Equal(t, 1, fake.dataCalls, "404 must not be retried")
}

func TestCall_ServerErrorRetriedThenSucceeds(t *testing.T) {
	fake := &vendorFake{t: t}
	fake.respond = func(call int, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, "000", "", []interface{}{map[string]interface{}{"terminalId": "8601"}})
	}
	client, _ := newTestClient(t, fake)

	items, err := client.SearchTerminalsByStatus(context.Background(), "HARD")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, fake.dataCalls)
}

func TestCall_RetriesExhausted(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "CASH")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientAPI)
	// maxRetries=2 means one initial attempt plus two retries.
	assert.Equal(t, 3, fake.dataCalls)
}

func TestCall_NonZeroResultCodeIsTerminal(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "127", "", nil)
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "ZOMBIE")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalAPI)
	assert.Equal(t, 1, fake.dataCalls, "non-000 result codes are not retried")
}

func TestCall_MalformedBodyIsTerminal(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "000", "", "scalar body")
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalAPI)
	assert.Equal(t, 1, fake.dataCalls)
}

func TestCall_GarbageResponseRetried(t *testing.T) {
	fake := &vendorFake{t: t}
	fake.respond = func(call int, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			w.Write([]byte("<html>Bad Gateway</html>"))
			return
		}
		writeEnvelope(w, "000", "", []interface{}{})
	}
	client, _ := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.dataCalls)
}

func TestCall_AdoptsRotatedToken(t *testing.T) {
	fake := &vendorFake{t: t}
	fake.respond = func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "000", "tok-rotated", []interface{}{})
	}
	client, session := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.NoError(t, err)
	assert.Equal(t, "tok-rotated", session.Token())

	// The next call carries the rotated token.
	_, err = client.SearchTerminalsByStatus(context.Background(), "HARD")
	require.NoError(t, err)
	assert.Equal(t, "tok-rotated", fake.lastHeader.UserToken)
}

func TestCall_RejectedEnvelopeDoesNotRotateToken(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "127", "tok-stray", nil)
	}}
	client, session := newTestClient(t, fake)

	_, err := client.SearchTerminalsByStatus(context.Background(), "WOUNDED")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalAPI)

	// A token carried on a non-000 envelope is not adopted; the next
	// call still presents the login token.
	assert.Equal(t, "tok-1", session.Token())
}

func TestFetchDashboard_RequiresObjectBody(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, "000", "", []interface{}{})
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.FetchDashboard(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchDashboard_Success(t *testing.T) {
	fake := &vendorFake{t: t, respond: func(_ int, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sigit/reports/dashboards", r.URL.Path)
		writeEnvelope(w, "000", "", map[string]interface{}{
			"fifth_graphic": []interface{}{},
		})
	}}
	client, _ := newTestClient(t, fake)

	dashboard, err := client.FetchDashboard(context.Background())
	require.NoError(t, err)
	assert.Contains(t, dashboard, "fifth_graphic")
}
