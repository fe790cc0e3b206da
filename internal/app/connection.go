package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	"github.com/pion/webrtc/v3"
)

// CommandHandler queues a command and returns a func that waits for its reply.
type CommandHandler func(context.Context, models.CommandReq) func() models.CommandResp

// Connection is one operator's WebRTC session. Commands arrive on the
// "command" data channel and the HUD is pushed on "hud".
type Connection struct {
	ID             string
	PeerConnection *webrtc.PeerConnection
	Ctx            context.Context
	CtxCancel      context.CancelFunc

	commandHandler CommandHandler
	hudChannel     chan models.Hud
	onClose        func(*Connection)

	lock          sync.Mutex
	hudOutput     *webrtc.DataChannel
	pingOutput    *webrtc.DataChannel
	commandOutput *webrtc.DataChannel
	pingInput     chan int64
	closeOnce     sync.Once
}

func NewConnection(id string, commandHandler CommandHandler, onClose func(*Connection)) (*Connection, error) {
	log.Infof("creating user connection %s", id)
	peerConn, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed creating peer connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:             id,
		PeerConnection: peerConn,
		Ctx:            ctx,
		CtxCancel:      cancel,
		commandHandler: commandHandler,
		hudChannel:     make(chan models.Hud, 10),
		onClose:        onClose,
		pingInput:      make(chan int64, 10),
	}, nil
}

func (c *Connection) Disconnect() {
	c.closeOnce.Do(func() {
		log.Infof("user %s disconnecting", c.ID)
		c.CtxCancel()
		err := c.PeerConnection.Close()
		if err != nil {
			log.Warnf("failed closing peer connection %s: %s", c.ID, err)
		}
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// SendHud queues a HUD update, dropping it if the sender is behind.
func (c *Connection) SendHud(hud models.Hud) {
	select {
	case c.hudChannel <- hud:
	default:
	}
}

func (c *Connection) RegisterHandlers() error {
	log.Info("start event listeners")
	c.PeerConnection.OnICEConnectionStateChange(c.onICEConnectionStateChange)

	c.PeerConnection.OnICECandidate(c.onICECandidate)

	c.PeerConnection.OnDataChannel(c.onDataChannel)

	go c.updater()
	return nil
}

func (c *Connection) updater() {
	pingTicker := time.NewTicker(1 * time.Second)
	defer pingTicker.Stop()
	hudTicker := time.NewTicker(hudInterval)
	defer hudTicker.Stop()

	sent := true
	hudToSend := models.Hud{}
	lastPing := int64(0)
	for {
		select {
		case <-c.Ctx.Done():
			log.Infof("stopping user updater: %s", c.Ctx.Err())
			return
		case hud := <-c.hudChannel:
			hudToSend = hud
			sent = false
		case <-pingTicker.C:
			pingOutput := c.output(&c.pingOutput)
			if pingOutput != nil {
				data, err := json.Marshal(models.Ping{
					TimeStamp: time.Now().UnixMilli(),
					Source:    PingSourceName,
				})
				if err != nil {
					continue
				}
				err = pingOutput.Send(data)
				if err != nil {
					log.Warnf("failed sending ping: %s", err)
				}
			}
		case receivedPing := <-c.pingInput:
			lastPing = receivedPing
		case <-hudTicker.C:
			hudOutput := c.output(&c.hudOutput)
			if sent || hudOutput == nil {
				continue
			}
			if len(hudToSend.Lines) > 0 {
				lines := append([]string(nil), hudToSend.Lines...)
				lines[0] = fmt.Sprintf("%s | Ping:%dms", lines[0], lastPing)
				hudToSend.Lines = lines
			}
			encodedMsg, err := encode(hudToSend)
			sent = true
			if err != nil {
				log.Warnf("failed encoding hud: %s", err)
				continue
			}
			err = hudOutput.SendText(encodedMsg)
			if err != nil {
				log.Warnf("failed sending hud: %s", err)
			}
		}
	}
}

func (c *Connection) output(channel **webrtc.DataChannel) *webrtc.DataChannel {
	c.lock.Lock()
	defer c.lock.Unlock()
	return *channel
}

func (c *Connection) setOutput(channel **webrtc.DataChannel, d *webrtc.DataChannel) {
	c.lock.Lock()
	defer c.lock.Unlock()
	*channel = d
}
