package models

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

type ConnectReq struct {
	Key      string `json:"key"`
	Password string `json:"password"`
}

type ConnectResp struct {
	Robot Robot `json:"robot"`
}

type Robot struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Type      string    `json:"type"`
}

type IceCandidate struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	UserId    uuid.UUID               `json:"user_id"`
}

type Offer struct {
	Offer  webrtc.SessionDescription `json:"offer"`
	UserId uuid.UUID                 `json:"user_id"`
}

type Answer struct {
	Answer *webrtc.SessionDescription `json:"answer"`
	UserId uuid.UUID                  `json:"user_id"`
}

// CommandReq is a motion command from any transport.
type CommandReq struct {
	Id        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	Direction string    `json:"direction,omitempty"`
	Cycles    int       `json:"cycles,omitempty"`
	Source    string    `json:"source,omitempty"`
	TimeStamp int64     `json:"time_stamp"`
}

type CommandResp struct {
	Id       uuid.UUID `json:"id"`
	Accepted bool      `json:"accepted"`
	State    string    `json:"state"`
	Error    string    `json:"error,omitempty"`
}

type Status struct {
	State     string    `json:"state"`
	Halted    bool      `json:"halted"`
	Gait      string    `json:"gait"`
	GaitState string    `json:"gait_state"`
	Phase     int       `json:"phase"`
	Cycle     int       `json:"cycle"`
	LastPhase int64     `json:"last_phase"`
	RunId     uuid.UUID `json:"run_id"`
	TimeStamp int64     `json:"time_stamp"`
}

type Hud struct {
	Lines []string `json:"lines"`
}

type Ping struct {
	Source    string `json:"source"`
	TimeStamp int64  `json:"time_stamp"`
}
