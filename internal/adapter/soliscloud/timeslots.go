package soliscloud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/berfenger/solisflux/internal/core/domain"
)

// encodeTimeslots renders the control value: for every slot the charge
// amps, the discharge amps, then the charge and discharge start and end.
func encodeTimeslots(s *domain.TimeslotSettings) string {
	parts := make([]string, 0, domain.TimeslotCount)
	for i := 0; i < domain.TimeslotCount; i++ {
		c, d := s.Charge[i], s.Discharge[i]
		parts = append(parts, fmt.Sprintf("%d,%d,%s,%s,%s,%s",
			c.Amps, d.Amps, c.Start, c.End, d.Start, d.End))
	}
	return strings.Join(parts, ",")
}

// decodeTimeslots parses the read value, four fields per slot:
// "ca,da,HH:MM-HH:MM,HH:MM-HH:MM".
func decodeTimeslots(value string) (*domain.TimeslotSettings, error) {
	fields := strings.Split(strings.TrimSpace(value), ",")
	if len(fields) != 4*domain.TimeslotCount {
		return nil, fmt.Errorf("unexpected timeslot value %q", value)
	}
	var s domain.TimeslotSettings
	for i := 0; i < domain.TimeslotCount; i++ {
		f := fields[4*i : 4*i+4]
		ca, err := strconv.Atoi(strings.TrimSpace(f[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid charge current %q: %w", f[0], err)
		}
		da, err := strconv.Atoi(strings.TrimSpace(f[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid discharge current %q: %w", f[1], err)
		}
		if s.Charge[i], err = decodeRange(f[2], ca); err != nil {
			return nil, err
		}
		if s.Discharge[i], err = decodeRange(f[3], da); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func decodeRange(r string, amps int) (domain.Timeslot, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(r), "-")
	if !ok {
		return domain.Timeslot{}, fmt.Errorf("invalid time range %q", r)
	}
	s, err := domain.ParseHHMM(start)
	if err != nil {
		return domain.Timeslot{}, err
	}
	e, err := domain.ParseHHMM(end)
	if err != nil {
		return domain.Timeslot{}, err
	}
	return domain.Timeslot{Start: s, End: e, Amps: amps}, nil
}
