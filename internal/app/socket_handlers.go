package app

import (
	"context"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	socketio "github.com/googollee/go-socket.io"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

func (a *App) onOffer(socketConn socketio.Conn, msgs []string) {
	if len(msgs) != 1 {
		log.Warnf("offer from %s had wrong number of msgs: %d", socketConn.ID(), len(msgs))
		if len(msgs) == 0 {
			return
		}
	}
	msg := msgs[0]

	offer := models.Offer{}
	err := decode(msg, &offer)
	if err != nil {
		log.Warnf("offer from %s failed unmarshaling: %s - msg - %s", socketConn.ID(), err, msg)
		return
	}

	connID := socketConn.ID()
	if offer.UserId != uuid.Nil {
		connID = offer.UserId.String()
	}

	newConnection, err := NewConnection(connID, a.submitCommand, a.removeConnection)
	if err != nil {
		log.Errorf("failed creating connection on offer for %s: %s", connID, err)
		return
	}

	err = newConnection.RegisterHandlers()
	if err != nil {
		log.Errorf("failed registering handlers for connection %s: %s", connID, err)
		newConnection.Disconnect()
		return
	}

	err = newConnection.PeerConnection.SetRemoteDescription(offer.Offer)
	if err != nil {
		log.Errorf("failed to set remote description: %s", err)
		newConnection.Disconnect()
		return
	}

	answer, err := newConnection.PeerConnection.CreateAnswer(nil)
	if err != nil {
		log.Errorf("failed to create answer: %s", err)
		newConnection.Disconnect()
		return
	}

	// no trickle ice, the answer carries every candidate
	gatherComplete := webrtc.GatheringCompletePromise(newConnection.PeerConnection)

	err = newConnection.PeerConnection.SetLocalDescription(answer)
	if err != nil {
		log.Errorf("failed to set local description: %s", err)
		newConnection.Disconnect()
		return
	}

	<-gatherComplete
	a.addConnection(newConnection)

	encodedAnswer, err := encode(models.Answer{
		Answer: newConnection.PeerConnection.LocalDescription(),
		UserId: offer.UserId,
	})
	if err != nil {
		log.Errorf("failed encoding answer: %s", err)
		return
	}
	log.Info("sending answer")
	a.client.Emit("answer", encodedAnswer)
}

func (a *App) onICECandidate(socketConn socketio.Conn, msg string) {
	candidate := models.IceCandidate{}
	err := decode(msg, &candidate)
	if err != nil {
		log.Warnf("ice candidate from %s failed unmarshaling: %s", socketConn.ID(), msg)
		return
	}

	a.connLock.Lock()
	conn, ok := a.connections[candidate.UserId.String()]
	a.connLock.Unlock()
	if !ok {
		log.Warnf("ice candidate for unknown user %s", candidate.UserId)
		return
	}

	err = conn.PeerConnection.AddICECandidate(candidate.Candidate)
	if err != nil {
		log.Warnf("failed adding ice candidate for %s: %s", candidate.UserId, err)
	}
}

func (a *App) onRegisterSuccess(socketConn socketio.Conn, msgs []string) {
	if len(msgs) != 1 {
		log.Warnf("register from %s had wrong number of msgs: %d", socketConn.ID(), len(msgs))
		if len(msgs) == 0 {
			return
		}
	}

	decodedMsg := models.ConnectResp{}
	err := decode(msgs[0], &decodedMsg)
	if err != nil {
		log.Warnf("register from %s failed unmarshaling: %s", socketConn.ID(), msgs[0])
		return
	}

	robot := decodedMsg.Robot
	log.Infof("robot connected as %s(%s) type %s", robot.Name, robot.ShortName, robot.Type)
}

// onCommand takes motion commands relayed by the server.
func (a *App) onCommand(socketConn socketio.Conn, msg string) {
	req := models.CommandReq{}
	err := decode(msg, &req)
	if err != nil {
		log.Warnf("command from %s failed unmarshaling: %s", socketConn.ID(), msg)
		return
	}
	req.Source = "socket:" + socketConn.ID()

	wait := a.submitCommand(context.Background(), req)
	go func() {
		encodedResp, err := encode(wait())
		if err != nil {
			log.Warnf("failed encoding command response: %s", err)
			return
		}
		a.client.Emit("command_response", encodedResp)
	}()
}
