package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/config"
	"github.com/BaSui01/leadflow/engine"
	"github.com/BaSui01/leadflow/engine/history"
	"github.com/BaSui01/leadflow/engine/learner"
	"github.com/BaSui01/leadflow/engine/lock"
	"github.com/BaSui01/leadflow/engine/ratelimit"
	"github.com/BaSui01/leadflow/types"
)

type apiEnv struct {
	api     *API
	handler http.Handler
	store   *history.MemoryStore
	biases  *learner.MemoryBiasStore
	learner *learner.Learner
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	cfg := config.DefaultHandoffConfig()
	store := history.NewMemoryStore()
	biases := learner.NewMemoryBiasStore()

	eng := engine.New(cfg, engine.Options{
		Locks:    lock.NewMemoryManager(),
		Counters: ratelimit.NewMemoryCounter(),
		History:  store,
		Bias:     biases,
		Emitter:  engine.NopEmitter{},
		Logger:   zap.NewNop(),
	})

	l := learner.New(biases, store, learner.DefaultOptions(), zap.NewNop())
	api := NewAPI(eng, store, l, nil, zap.NewNop())

	return &apiEnv{
		api:     api,
		handler: api.Routes(),
		store:   store,
		biases:  biases,
		learner: l,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Decide(t *testing.T) {
	env := newAPIEnv(t)

	rec := postJSON(t, env.handler, "/v1/decide", types.IntentSignal{
		ContactID:       "contact-1",
		SourceHandler:   "support_handler",
		CandidateTarget: "seller_handler",
		Confidence:      0.9,
		Temperature:     types.TemperatureHot,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision types.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, types.DecisionHandoff, decision.Kind)
	assert.Equal(t, "seller_handler", decision.Target)
	assert.NotEmpty(t, decision.RecordID)

	assignment, err := env.store.Assignment(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, "seller_handler", assignment.CurrentHandler)
}

func TestAPI_Decide_InvalidInput(t *testing.T) {
	env := newAPIEnv(t)

	rec := postJSON(t, env.handler, "/v1/decide", types.IntentSignal{
		ContactID:       "contact-1",
		SourceHandler:   "support_handler",
		CandidateTarget: "seller_handler",
		Confidence:      1.5,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrInvalidInput), resp.Error)
}

func TestAPI_Decide_MalformedBody(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decide", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_DecideBatch(t *testing.T) {
	env := newAPIEnv(t)

	rec := postJSON(t, env.handler, "/v1/decide/batch", []types.IntentSignal{
		{ContactID: "contact-1", SourceHandler: "support_handler", CandidateTarget: "seller_handler", Confidence: 0.75, Temperature: types.TemperatureWarm},
		{ContactID: "contact-1", SourceHandler: "support_handler", CandidateTarget: "billing_handler", Confidence: 0.92, Temperature: types.TemperatureWarm},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision types.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, types.DecisionHandoff, decision.Kind)
	assert.Equal(t, "billing_handler", decision.Target)
}

func TestAPI_Outcome_Accepted(t *testing.T) {
	env := newAPIEnv(t)

	// Commit a handoff first so the outcome has a record to land on.
	rec := postJSON(t, env.handler, "/v1/decide", types.IntentSignal{
		ContactID:       "contact-1",
		SourceHandler:   "support_handler",
		CandidateTarget: "seller_handler",
		Confidence:      0.9,
		Temperature:     types.TemperatureWarm,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision types.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = env.learner.Run(ctx)
	}()

	rec = postJSON(t, env.handler, "/v1/outcomes", map[string]string{
		"record_id": decision.RecordID,
		"outcome":   "accepted",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		return env.biases.Bias(context.Background(), "support_handler", "seller_handler") > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestAPI_Outcome_Rejections(t *testing.T) {
	env := newAPIEnv(t)

	rec := postJSON(t, env.handler, "/v1/outcomes", map[string]string{
		"record_id": "",
		"outcome":   "accepted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, env.handler, "/v1/outcomes", map[string]string{
		"record_id": "some-id",
		"outcome":   "exploded",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Assignment(t *testing.T) {
	env := newAPIEnv(t)

	require.NoError(t, env.store.SetAssignment(context.Background(), "contact-1", "seller_handler", time.Now().UTC()))

	req := httptest.NewRequest(http.MethodGet, "/v1/contacts/contact-1/assignment", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var assignment types.ConversationAssignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignment))
	assert.Equal(t, "seller_handler", assignment.CurrentHandler)
}

func TestAPI_Assignment_NotFound(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/contacts/ghost/assignment", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
