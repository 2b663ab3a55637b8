package soliscloud

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	INVERTER_LIST_ENDPOINT   = "/v1/api/inverterList"
	INVERTER_DETAIL_ENDPOINT = "/v1/api/inverterDetail"
	LOGIN_ENDPOINT           = "/v2/api/login"
	CONTROL_ENDPOINT         = "/v2/api/control"
	READ_ENDPOINT            = "/v2/api/atRead"
	DEFAULT_API_URL          = "https://www.soliscloud.com:13333"
	TIMESLOT_CID             = "103"
)

// number accepts both JSON numbers and numeric strings.
type number struct {
	Value *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		n.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type baseResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Msg     string `json:"msg"`
}

type inverterListRequest struct {
	StationId string `json:"stationId"`
}

type inverterRecord struct {
	Id          string `json:"id"`
	Sn          string `json:"sn"`
	StationName string `json:"stationName"`
}

type inverterListResponse struct {
	baseResponse
	Data *struct {
		Page struct {
			Records []inverterRecord `json:"records"`
		} `json:"page"`
	} `json:"data"`
}

type inverterDetailRequest struct {
	Id string `json:"id"`
	Sn string `json:"sn"`
}

type inverterDetailResponse struct {
	baseResponse
	Data *struct {
		BatteryType        string `json:"batteryType"`
		BatteryCapacitySoc number `json:"batteryCapacitySoc"`
		SocDischargeSet    number `json:"socDischargeSet"`
		Power              number `json:"power"`
		DataTimestamp      number `json:"dataTimestamp"`
	} `json:"data"`
}

type loginRequest struct {
	UserInfo string `json:"userInfo"`
	PassWord string `json:"passWord"`
}

type loginResponse struct {
	baseResponse
	CsrfToken string `json:"csrfToken"`
}

type controlRequest struct {
	InverterId string `json:"inverterId"`
	Cid        string `json:"cid"`
	Value      string `json:"value"`
}

type readRequest struct {
	InverterSn string `json:"inverterSn"`
	Cid        string `json:"cid"`
}

type readResponse struct {
	baseResponse
	Data *struct {
		Msg string `json:"msg"`
	} `json:"data"`
}

var _ json.Unmarshaler = (*number)(nil)
