package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/util"
	"github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMaster answers like the master actor for a single "night" period.
func fakeMaster(ctx actor.Context) {
	night := domain.Period{
		Name:        "night",
		Direction:   domain.DirectionCharge,
		Start:       domain.MustParseHHMM("00:00"),
		End:         domain.MustParseHHMM("06:00"),
		CurrentAmps: 25,
		Sync:        domain.SyncStart,
		Requirement: domain.LiteralRef(7),
		UseForecast: true,
	}
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: true})
	case domain.ListPeriodsRequest:
		ctx.Respond(domain.ListPeriodsResponse{Periods: []domain.Period{night}})
	case domain.ForPeriod:
		if msg.Name != "night" {
			ctx.Respond(domain.PeriodNotFoundResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: fmt.Errorf("%w: %s", domain.ErrUnknownPeriod, msg.Name),
				},
				Name: msg.Name,
			})
			return
		}
		switch req := msg.Request.(type) {
		case domain.GetPlannerStatusRequest:
			ctx.Respond(domain.GetPlannerStatusResponse{Period: night, State: "idle", LastOutcome: "OK"})
		case domain.RunCycleRequest:
			ctx.Respond(domain.RunCycleResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrCycleInFlight},
			})
		case domain.PreviewRequest:
			level := 7.0
			if req.LevelRequired != nil {
				level = *req.LevelRequired
			}
			ctx.Respond(domain.PreviewResponse{Preview: &domain.Preview{
				Period: "night", Direction: "charge", Start: "00:00", End: "01:30",
				LevelKWh: level, EnergyAfterKWh: level, CurrentKWh: 4.5, SoC: 50, TargetSoC: 75, Check: "OK",
			}})
		case domain.SetMinutesRequest:
			result := domain.Ok()
			if req.Minutes == 13 {
				result = domain.Err(domain.ErrorKindApply, "HTTP error setting charging times: 500")
			}
			ctx.Respond(domain.SetMinutesResponse{
				Start:  night.Start,
				End:    night.Start.Add(req.Minutes),
				Amps:   night.CurrentAmps,
				Result: result,
			})
		}
	}
}

func newTestServer(t *testing.T) http.Handler {
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	pid := as.Root.Spawn(actor.PropsFromFunc(fakeMaster))
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return newServer(util.LoadTestConfig(), as.Root, pid, logger).RegisterRoutes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestListPeriods(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/periods", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var periods []periodView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &periods))
	require.Len(t, periods, 1)
	assert.Equal(t, "night", periods[0].Name)
	assert.Equal(t, "00:00", periods[0].Start)
	assert.Equal(t, "06:00", periods[0].End)
	assert.Equal(t, "7", periods[0].Requirement)
}

func TestPeriodStatus(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/periods/night", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status statusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)

	rec = do(t, h, http.MethodGet, "/api/periods/morning", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreview(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/periods/night/preview", `{"level_required": 9.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, 9.5, preview["level"])
	assert.Equal(t, 4.5, preview["current_energy"])
	assert.Equal(t, "OK", preview["check"])
	assert.Contains(t, preview, "energy_after")
	assert.Contains(t, preview, "target_soc")

	rec = do(t, h, http.MethodPost, "/api/periods/night/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/periods/night/preview", `{"level_required": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunInFlightConflict(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodPost, "/api/periods/night/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrCycleInFlight.Error())
}

func TestMinutes(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/periods/night/minutes", `{"minutes": 90, "test": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var view minutesView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, minutesView{Start: "00:00", End: "01:30", Amps: 25, Result: "OK"}, view)

	rec = do(t, h, http.MethodPost, "/api/periods/night/minutes", `{"minutes": 13}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/periods/night/minutes", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/periods/night/minutes", `{"minutes": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
