package app

import (
	"encoding/json"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	"github.com/pion/webrtc/v3"
)

const PingSourceName = "hexapod"

func (c *Connection) onICEConnectionStateChange(connectionState webrtc.ICEConnectionState) {
	log.Infof("connection %s state has changed: %s", c.ID, connectionState.String())
	switch connectionState {
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
		c.Disconnect()
	}
}

func (c *Connection) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate != nil {
		log.Debugf("received ICE candidate from client: %s", candidate.String())
	}
}

func (c *Connection) onDataChannel(d *webrtc.DataChannel) {
	log.Infof("new data channel: %s", d.Label())

	d.OnOpen(func() {
		log.Infof("data channel open: %s", d.Label())
		switch d.Label() {
		case "hud":
			c.setOutput(&c.hudOutput, d)
		case "ping":
			c.setOutput(&c.pingOutput, d)
		case "command":
			c.setOutput(&c.commandOutput, d)
		}
	})

	switch d.Label() {
	case "command":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onCommandHandler(msg.Data) })
	case "ping":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onPingHandler(msg.Data) })
	case "hud":
	default:
		log.Warnf("received message on unsupported channel: %s", d.Label())
	}
}

func (c *Connection) onCommandHandler(data []byte) {
	req := models.CommandReq{}
	err := json.Unmarshal(data, &req)
	if err != nil {
		log.Warnf("failed unmarshalling data channel msg: %s", data)
		return
	}
	req.Source = "webrtc:" + c.ID

	// queued in message order, the reply waits for the running gait to settle
	wait := c.commandHandler(c.Ctx, req)
	go func() {
		resp := wait()
		commandOutput := c.output(&c.commandOutput)
		if commandOutput == nil {
			return
		}
		encodedResp, err := encode(resp)
		if err != nil {
			log.Warnf("failed encoding command response: %s", err)
			return
		}
		err = commandOutput.SendText(encodedResp)
		if err != nil {
			log.Warnf("failed sending command response: %s", err)
		}
	}()
}

func (c *Connection) onPingHandler(data []byte) {
	ping := models.Ping{}
	err := json.Unmarshal(data, &ping)
	if err != nil {
		log.Warnf("failed unmarshalling data channel msg: %s", data)
		return
	}
	if ping.Source == PingSourceName {
		roundTripTime := time.Now().UnixMilli() - ping.TimeStamp
		log.Debugf("ping: %d ms", roundTripTime)
		select {
		case c.pingInput <- roundTripTime:
		default:
		}
	}
}
