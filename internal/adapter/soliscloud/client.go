package soliscloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/carlmjohnson/versioninfo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Config struct {
	APIURL      string
	KeyId       string
	KeySecret   string
	UserName    string
	Password    string
	StationId   string
	CapacityKWh float64
	Timeout     time.Duration
	Retries     int
}

// Client talks to the Solis cloud API. Connect must succeed before the
// timeslots can be read or written.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
	backOff func() backoff.BackOff

	mu          sync.Mutex
	inverterId  string
	inverterSn  string
	stationName string
	token       string
}

// statusError is a non 200 HTTP response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Body)
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DEFAULT_API_URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			return b
		},
	}
}

// Connect looks up the inverter, reads its details and logs in. The
// returned telemetry is a fresh snapshot.
func (c *Client) Connect(ctx context.Context) (*domain.InverterTelemetry, error) {
	entry, err := c.inverterEntry(ctx)
	if err != nil {
		return nil, err
	}
	telemetry, err := c.inverterDetail(ctx, entry)
	if err != nil {
		return nil, err
	}
	token, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.inverterId, c.inverterSn, c.stationName, c.token = entry.Id, entry.Sn, entry.StationName, token
	c.mu.Unlock()
	return telemetry, nil
}

func (c *Client) ReadTelemetry(ctx context.Context) (*domain.InverterTelemetry, error) {
	return c.Connect(ctx)
}

func (c *Client) inverterEntry(ctx context.Context) (*inverterRecord, error) {
	var resp inverterListResponse
	if err := c.call(ctx, INVERTER_LIST_ENDPOINT, inverterListRequest{StationId: c.cfg.StationId}, false, &resp); err != nil {
		return nil, fmt.Errorf("getting inverter entry: %w", err)
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("Payload error getting inverter entry: %s %s", resp.Code, resp.Msg)
	}
	var entry *inverterRecord
	for i, r := range resp.Data.Page.Records {
		if r.Id != "" && r.Sn != "" {
			entry = &resp.Data.Page.Records[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no inverter found for station %s", domain.ErrConfig, c.cfg.StationId)
	}
	return entry, nil
}

func (c *Client) inverterDetail(ctx context.Context, entry *inverterRecord) (*domain.InverterTelemetry, error) {
	var resp inverterDetailResponse
	if err := c.call(ctx, INVERTER_DETAIL_ENDPOINT, inverterDetailRequest{Id: entry.Id, Sn: entry.Sn}, false, &resp); err != nil {
		return nil, fmt.Errorf("getting inverter detail: %w", err)
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("Payload error getting inverter detail: %s %s", resp.Code, resp.Msg)
	}
	d := resp.Data
	telemetry := &domain.InverterTelemetry{
		InverterId:  entry.Id,
		InverterSN:  entry.Sn,
		StationName: entry.StationName,
		BatteryType: d.BatteryType,
		Battery: domain.BatteryState{
			CapacityKWh:          c.cfg.CapacityKWh,
			SoCPercent:           d.BatteryCapacitySoc.Value,
			OverDischargePercent: d.SocDischargeSet.Value,
		},
		InverterPower: d.Power.Value,
		HostTime:      c.now(),
	}
	if d.DataTimestamp.Value != nil {
		telemetry.InverterTime = time.UnixMilli(int64(*d.DataTimestamp.Value))
	}
	return telemetry, nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	var resp loginResponse
	req := loginRequest{UserInfo: c.cfg.UserName, PassWord: passwordHash(c.cfg.Password)}
	if err := c.call(ctx, LOGIN_ENDPOINT, req, false, &resp); err != nil {
		return "", fmt.Errorf("getting login detail: %w", err)
	}
	if !resp.Success || resp.CsrfToken == "" {
		return "", fmt.Errorf("Payload error getting login detail: %s %s", resp.Code, resp.Msg)
	}
	return resp.CsrfToken, nil
}

// ReadTimeslots returns the three charge and discharge timeslots currently
// configured on the inverter.
func (c *Client) ReadTimeslots(ctx context.Context) (*domain.TimeslotSettings, error) {
	c.mu.Lock()
	sn, token := c.inverterSn, c.token
	c.mu.Unlock()
	if token == "" {
		return nil, fmt.Errorf("%w: not logged in", domain.ErrConfig)
	}
	var resp readResponse
	if err := c.call(ctx, READ_ENDPOINT, readRequest{InverterSn: sn, Cid: TIMESLOT_CID}, true, &resp); err != nil {
		return nil, fmt.Errorf("reading timeslots: %w", err)
	}
	if resp.Code != "0" || resp.Data == nil {
		return nil, fmt.Errorf("Payload error reading timeslots: %s %s", resp.Code, resp.Msg)
	}
	return decodeTimeslots(resp.Data.Msg)
}

// SetTimeslot replaces one slot and keeps the others as read from the
// inverter. Nothing is written when the current slots cannot be read.
func (c *Client) SetTimeslot(ctx context.Context, direction domain.Direction, timeslot int, slot domain.Timeslot) domain.Result {
	settings, err := c.ReadTimeslots(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfig) {
			return domain.Err(domain.ErrorKindConfig, "Not logged in")
		}
		return domain.Err(domain.ErrorKindApply, "Request exception reading charging/discharging times: "+err.Error())
	}
	target := settings.Slot(direction, timeslot)
	if target == nil {
		return domain.Err(domain.ErrorKindConfig, fmt.Sprintf("Invalid timeslot %d", timeslot))
	}
	*target = slot
	return c.writeTimeslots(ctx, settings)
}

// ClearTimeslots turns every charge and discharge slot off.
func (c *Client) ClearTimeslots(ctx context.Context) domain.Result {
	var settings domain.TimeslotSettings
	if current, err := c.ReadTimeslots(ctx); err == nil {
		for i := 0; i < domain.TimeslotCount; i++ {
			settings.Charge[i].Amps = current.Charge[i].Amps
			settings.Discharge[i].Amps = current.Discharge[i].Amps
		}
	}
	return c.writeTimeslots(ctx, &settings)
}

func (c *Client) writeTimeslots(ctx context.Context, settings *domain.TimeslotSettings) domain.Result {
	c.mu.Lock()
	id, token := c.inverterId, c.token
	c.mu.Unlock()
	if token == "" {
		return domain.Err(domain.ErrorKindConfig, "Not logged in")
	}

	body := controlRequest{InverterId: id, Cid: TIMESLOT_CID, Value: encodeTimeslots(settings)}
	raw, err := c.post(ctx, CONTROL_ENDPOINT, body, true)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return domain.Err(domain.ErrorKindApply, fmt.Sprintf("HTTP error setting charging/discharging times: %d %s", se.Status, se.Body))
		}
		return domain.Err(domain.ErrorKindApply, "Request exception setting charging/discharging times: "+err.Error())
	}
	var resp baseResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Code != "0" {
		return domain.Err(domain.ErrorKindApply, fmt.Sprintf("Payload error setting charging/discharging times: %s", string(raw)))
	}
	c.logger.Debug("soliscloud: timeslots set", zap.String("value", body.Value))
	return domain.Ok()
}

func (c *Client) call(ctx context.Context, resource string, payload any, withToken bool, out any) error {
	raw, err := c.post(ctx, resource, payload, withToken)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return fmt.Errorf("HTTP error: %w", err)
		}
		return fmt.Errorf("Request exception: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", resource, err)
	}
	return nil
}

// post sends a signed request. Transport errors and 5xx responses are
// retried, other statuses are returned as *statusError right away.
func (c *Client) post(ctx context.Context, resource string, payload any, withToken bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+resource, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		signRequest(req, body, c.cfg.KeyId, c.cfg.KeySecret, resource, c.now())
		req.Header.Set("User-Agent", "solisflux/"+versioninfo.Short())
		if withToken {
			req.Header.Set("token", token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			se := &statusError{Status: resp.StatusCode, Body: string(raw)}
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, se
			}
			return nil, backoff.Permanent(se)
		}
		return raw, nil
	}

	retries := c.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), uint64(retries)), ctx)
	return backoff.RetryNotifyWithData(op, b, func(err error, d time.Duration) {
		c.logger.Warn("soliscloud: request failed, retrying", zap.String("resource", resource), zap.Duration("in", d), zap.Error(err))
	})
}

var _ port.InverterService = (*Client)(nil)
