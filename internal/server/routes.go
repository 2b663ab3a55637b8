package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

type periodView struct {
	Name        string  `json:"name"`
	Direction   string  `json:"direction"`
	Timeslot    int     `json:"timeslot"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Current     int     `json:"current"`
	Sync        string  `json:"sync"`
	Requirement string  `json:"kwh_requirement,omitempty"`
	MinReserve  float64 `json:"min_reserve_ratio"`
	UseForecast bool    `json:"use_forecast"`
}

type statusView struct {
	Period      periodView `json:"period"`
	State       string     `json:"state"`
	LastOutcome string     `json:"last_outcome"`
}

type previewBody struct {
	LevelRequired *float64 `json:"level_required"`
	UseForecast   bool     `json:"use_forecast"`
}

type minutesBody struct {
	Minutes *int `json:"minutes"`
	Test    bool `json:"test"`
}

type minutesView struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Amps   int    `json:"amps"`
	Result string `json:"result"`
}

type runView struct {
	Accepted bool `json:"accepted"`
	Skipped  bool `json:"skipped"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/periods", s.ListPeriodsHandler)
	api.GET("/periods/:name", s.PeriodStatusHandler)
	api.POST("/periods/:name/preview", s.PreviewHandler)
	api.POST("/periods/:name/run", s.RunHandler)
	api.POST("/periods/:name/minutes", s.MinutesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ListPeriodsHandler(c echo.Context) error {
	res, err := s.request(domain.ListPeriodsRequest{})
	if err != nil {
		return s.fail(c, err)
	}
	resp, ok := res.(domain.ListPeriodsResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	return c.JSON(http.StatusOK, lo.Map(resp.Periods, func(p domain.Period, _ int) periodView {
		return toPeriodView(p)
	}))
}

func (s *Server) PeriodStatusHandler(c echo.Context) error {
	res, err := s.forPeriod(c, domain.GetPlannerStatusRequest{})
	if err != nil {
		return s.fail(c, err)
	}
	resp, ok := res.(domain.GetPlannerStatusResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	return c.JSON(http.StatusOK, statusView{
		Period:      toPeriodView(resp.Period),
		State:       resp.State,
		LastOutcome: resp.LastOutcome,
	})
}

func (s *Server) PreviewHandler(c echo.Context) error {
	var body previewBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	if body.LevelRequired != nil && *body.LevelRequired < 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "level_required should be >= 0"})
	}
	res, err := s.forPeriod(c, domain.PreviewRequest{
		LevelRequired: body.LevelRequired,
		UseForecast:   body.UseForecast,
	})
	if err != nil {
		return s.fail(c, err)
	}
	resp, ok := res.(domain.PreviewResponse)
	if !ok || resp.Preview == nil {
		return s.unexpected(c, res)
	}
	return c.JSON(http.StatusOK, resp.Preview)
}

func (s *Server) RunHandler(c echo.Context) error {
	res, err := s.forPeriod(c, domain.RunCycleRequest{Save: true, Trigger: "http"})
	if err != nil {
		return s.fail(c, err)
	}
	resp, ok := res.(domain.RunCycleResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	return c.JSON(http.StatusAccepted, runView{Accepted: resp.Accepted, Skipped: resp.Skipped})
}

func (s *Server) MinutesHandler(c echo.Context) error {
	var body minutesBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	if body.Minutes == nil || *body.Minutes < 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "minutes should be >= 0"})
	}
	res, err := s.forPeriod(c, domain.SetMinutesRequest{Minutes: *body.Minutes, Test: body.Test})
	if err != nil {
		return s.fail(c, err)
	}
	resp, ok := res.(domain.SetMinutesResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	view := minutesView{
		Start:  resp.Start.String(),
		End:    resp.End.String(),
		Amps:   resp.Amps,
		Result: resp.Result.String(),
	}
	if !resp.Result.IsOk() {
		return c.JSON(http.StatusBadGateway, view)
	}
	return c.JSON(http.StatusOK, view)
}

// forPeriod routes req to the planner of the :name path param and returns
// its response. Error responses are returned as errors.
func (s *Server) forPeriod(c echo.Context, req domain.PlannerRequest) (any, error) {
	res, err := s.request(domain.ForPeriod{Name: c.Param("name"), Request: req})
	if err != nil {
		return nil, err
	}
	if resp, ok := res.(domain.ActorResponse); ok && resp.HasResponseError() {
		return nil, resp.GetResponseError()
	}
	return res, nil
}

func (s *Server) request(msg any) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, s.requestTimeout).Result()
}

func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownPeriod):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCycleInFlight):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrConfig):
		status = http.StatusBadGateway
	}
	s.logger.Warn("request failed", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	return c.JSON(status, errorBody{Error: err.Error()})
}

func (s *Server) unexpected(c echo.Context, res any) error {
	s.logger.Error("unexpected response", zap.String("path", c.Path()), zap.Any("response", res))
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
}

func toPeriodView(p domain.Period) periodView {
	return periodView{
		Name:        p.Name,
		Direction:   string(p.Direction),
		Timeslot:    p.Timeslot,
		Start:       p.Start.String(),
		End:         p.End.String(),
		Current:     p.CurrentAmps,
		Sync:        string(p.Sync),
		Requirement: p.Requirement.String(),
		MinReserve:  p.MinReserveRatio,
		UseForecast: p.UseForecast,
	}
}
