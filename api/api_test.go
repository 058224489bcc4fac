package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/message"
	"github.com/nixxel-company-limited/booth-printer/models"
	"github.com/nixxel-company-limited/booth-printer/printer"
	"github.com/nixxel-company-limited/booth-printer/receipt"
	"github.com/nixxel-company-limited/booth-printer/session"
	"github.com/nixxel-company-limited/booth-printer/store"
)

type fakeSession struct {
	jobs []models.PrintJob
	err  error
}

func (s *fakeSession) Print(_ context.Context, job models.PrintJob) (session.Result, error) {
	s.jobs = append(s.jobs, job)
	if s.err != nil {
		return session.Result{}, s.err
	}
	return session.Result{JobID: "job-1", Device: "MPT-II", Records: len(job.Records()), Bytes: 1234}, nil
}

type fakePreviewer struct{}

func (fakePreviewer) Compose(models.PrintJob) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 460, 100)), nil
}

type fakeControl struct {
	connected    bool
	acquireErr   error
	disconnected int
}

func (c *fakeControl) Acquire(context.Context) (*printer.DeviceConnection, error) {
	if c.acquireErr != nil {
		return nil, c.acquireErr
	}
	c.connected = true
	return nil, nil
}

func (c *fakeControl) Disconnect() error {
	c.disconnected++
	c.connected = false
	return nil
}

func (c *fakeControl) Status() printer.Status {
	if !c.connected {
		return printer.Status{}
	}
	return printer.Status{Connected: true, DeviceID: "AA:BB", DeviceName: "MPT-II"}
}

type testEnv struct {
	router  http.Handler
	db      *store.SQLite
	session *fakeSession
	control *fakeControl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, models.Voter{ID: "v1", Name: "Ram", VoterID: "ABC123", WhatsApp: "9876543210"}))
	require.NoError(t, db.Put(ctx, models.Voter{ID: "v2", Name: "Sita"}))
	require.NoError(t, db.Put(ctx, models.Voter{ID: "v3", Name: "Alone"}))
	require.NoError(t, db.Link(ctx, "v1", "v2"))

	env := &testEnv{db: db, session: &fakeSession{}, control: &fakeControl{}}
	h := NewHandler(Deps{
		Jobs:      store.NewLoader(db, store.RetryPolicy{}, zap.NewNop()),
		Contacts:  db,
		Session:   env.session,
		Previewer: fakePreviewer{},
		Messages:  message.New(models.Candidate{Name: "जननेता", Party: "पार्टी", Symbol: "कमळ"}),
		Printer:   env.control,
	}, zap.NewNop())
	env.router = NewServer(h, "localhost:0", zap.NewNop()).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestPrintSingle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/print/voters/v1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res session.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 1, res.Records)

	require.Len(t, env.session.jobs, 1)
	assert.Equal(t, models.ModeSingle, env.session.jobs[0].Mode)
	assert.Equal(t, "Ram", env.session.jobs[0].Primary.Name)
}

func TestPrintFamily(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/print/voters/v1?family=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	job := env.session.jobs[0]
	assert.True(t, job.IsFamily())
	require.Len(t, job.Family, 1)
	assert.Equal(t, "Sita", job.Family[0].Name)
}

func TestPrintErrors(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"NotFound", "/print/voters/missing", nil, http.StatusNotFound},
		{"BadFamilyFlag", "/print/voters/v1?family=maybe", nil, http.StatusBadRequest},
		{"InvalidJob", "/print/voters/v3?family=true", &session.Error{Kind: session.KindInvalidJob, Err: models.ErrNoFamilyMembers}, http.StatusBadRequest},
		{"Busy", "/print/voters/v1", &session.Error{Kind: session.KindBusy, Err: session.ErrBusy}, http.StatusConflict},
		{"NoDevice", "/print/voters/v1", &session.Error{Kind: session.KindNoDevice, Err: printer.ErrNoWritableChannel}, http.StatusServiceUnavailable},
		{"Composer", "/print/voters/v1", &session.Error{Kind: session.KindComposerFailure, Err: receipt.ErrCapture}, http.StatusInternalServerError},
		{"Transport", "/print/voters/v1", &session.Error{Kind: session.KindTransportFailure, Err: printer.ErrTransport}, http.StatusBadGateway},
		{"Unknown", "/print/voters/v1", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.session.err = tc.err

			rec := env.do(t, http.MethodPost, tc.path, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/preview/voters/v1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 460, img.Bounds().Dx())

	rec = env.do(t, http.MethodGet, "/preview/voters/v3?family=true", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShare(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/share/voters/v1?family=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ShareResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "9876543210", resp.WhatsApp)
	assert.Empty(t, resp.Phone)
	assert.True(t, strings.HasPrefix(resp.Text, "*पार्टी*\n*जननेता*\n"))
	assert.Contains(t, resp.Text, "*1) Ram*")
	assert.Contains(t, resp.Text, "*2) Sita*")
}

func TestShareOmitsUnusableNumbers(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Put(context.Background(), models.Voter{
		ID: "v4", Name: "Ganesh", Phone: "98765", WhatsApp: "+91 98765 43210",
	}))

	rec := env.do(t, http.MethodGet, "/share/voters/v4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ShareResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Phone)
	assert.Empty(t, resp.WhatsApp)
	assert.Contains(t, resp.Text, "Ganesh")
}

func TestContact(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/voters/v2/contact", `{"type":"phone","number":"98765-43210"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ContactRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "9876543210", resp.Number)

	v, err := env.db.Voter(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", v.Phone)
	assert.Equal(t, "Sita", v.Name)
}

func TestContactErrors(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"BadJSON", "/voters/v1/contact", `{`, http.StatusBadRequest},
		{"BadType", "/voters/v1/contact", `{"type":"email","number":"9876543210"}`, http.StatusBadRequest},
		{"ShortNumber", "/voters/v1/contact", `{"type":"whatsapp","number":"12345"}`, http.StatusBadRequest},
		{"UnknownVoter", "/voters/nobody/contact", `{"type":"phone","number":"9876543210"}`, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPut, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/voters/v1/contact", `{"type":"phone","number":"1"}`)
	assert.Equal(t, message.ErrInvalidPhone.Error(), decodeError(t, rec))
}

func TestPrinterControl(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/printer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status printer.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.Connected)

	rec = env.do(t, http.MethodPost, "/printer/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Connected)
	assert.Equal(t, "MPT-II", status.DeviceName)

	rec = env.do(t, http.MethodPost, "/printer/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.control.disconnected)
	assert.False(t, env.control.connected)
}

func TestConnectErrors(t *testing.T) {
	env := newTestEnv(t)

	env.control.acquireErr = printer.ErrPermissionDenied
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/printer/connect", "").Code)

	env.control.acquireErr = printer.ErrNoWritableChannel
	rec := env.do(t, http.MethodPost, "/printer/connect", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decodeError(t, rec), "BLE")
}

func TestHealthAndMethods(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["printer"])

	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/print/voters/v1", "").Code)
}
