package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/config"
	"github.com/Speshl/gorrc_hexapod/internal/gait"
	"github.com/Speshl/gorrc_hexapod/internal/legs"
	"github.com/Speshl/gorrc_hexapod/internal/models"
	"github.com/Speshl/gorrc_hexapod/internal/motion"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	socketio "github.com/googollee/go-socket.io"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	healthInterval = 30 * time.Second
	hudInterval    = 250 * time.Millisecond
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "app",
})

type App struct {
	cfg config.Config

	hardware   *Hardware
	controller *motion.Controller

	client     *socketio.Client
	mqttClient mqtt.Client

	connLock    sync.Mutex
	connections map[string]*Connection

	statusChannel chan motion.Status
}

// NewApp builds the motion stack on top of initialized hardware. A nil
// client disables the socket.io transport.
func NewApp(cfg config.Config, hardware *Hardware, client *socketio.Client) (*App, error) {
	body, err := legs.NewBody(cfg.LegCfgs, hardware.Registry)
	if err != nil {
		return nil, err
	}

	catalog, err := gait.NewCatalog(cfg.PulseCfg, cfg.GaitCfg)
	if err != nil {
		return nil, err
	}

	sequencer := gait.NewSequencer(body)
	sequencer.OnPhase(func(event gait.PhaseEvent) {
		log.Debugf("%s cycle %d phase %d %s", event.Pattern, event.Cycle, event.Phase, event.Name)
	})

	a := &App{
		cfg:           cfg,
		hardware:      hardware,
		controller:    motion.NewController(hardware.Registry, catalog, sequencer),
		client:        client,
		connections:   make(map[string]*Connection),
		statusChannel: make(chan motion.Status, 10),
	}
	a.controller.OnStatus(a.onStatus)
	return a, nil
}

func (a *App) Controller() *motion.Controller {
	return a.controller
}

func (a *App) RegisterHandlers() error {
	if a.client == nil {
		return nil
	}

	log.Info("registering handlers")
	a.client.OnEvent("reply", func(s socketio.Conn, msg string) {
		log.Infof("receive message /reply: %s", msg)
	})

	a.client.OnEvent("offer", a.onOffer)

	a.client.OnEvent("candidate", a.onICECandidate)

	a.client.OnEvent("register_success", a.onRegisterSuccess)

	a.client.OnEvent("command", a.onCommand)

	log.Info("attempting to connect to server...")
	err := a.client.Connect() //Client must have atleast 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to server - %w", err)
	}
	log.Info("connected to server")
	return nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	log.Info("starting...")

	defer func() {
		log.Info("stopping...")
		if a.client != nil {
			a.client.Close()
		}
		for _, conn := range a.takeConnections() {
			conn.Disconnect()
		}
	}()

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			log.Warnf("received signal: %s", sig)
			err := a.controller.EmergencyStop()
			if err != nil {
				log.Errorf("failed zeroing outputs on signal: %s", err)
			}
			cancel()
			return fmt.Errorf("received signal %s: %w", sig, context.Canceled)
		case <-groupCtx.Done():
			log.Info("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.controller.Start(groupCtx)
	})

	group.Go(func() error {
		return a.startHud(groupCtx)
	})

	if a.cfg.MQTTCfg.Broker != "" {
		group.Go(func() error {
			return a.startMQTT(groupCtx)
		})
	}

	if a.client != nil {
		//Send connect and send healthchecks
		group.Go(func() error {
			encodedMsg, _ := encode(models.ConnectReq{
				Key:      a.cfg.ServerCfg.Key,
				Password: a.cfg.ServerCfg.Password,
			})
			a.client.Emit("robot_connect", encodedMsg)

			healthTicker := time.NewTicker(healthInterval)
			defer healthTicker.Stop()

			for {
				select {
				case <-groupCtx.Done():
					log.Info("health checker stopped")
					return groupCtx.Err()
				case <-healthTicker.C:
					log.Debug("healthcheck: healthy")
					a.client.Emit("robot_healthy", "")
				}
			}
		})
	}

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopping due to error - %w", err)
	}
	log.Info("context was cancelled")
	return nil
}

func (a *App) onStatus(status motion.Status) {
	select {
	case a.statusChannel <- status:
	default:
		log.Debug("status channel full, dropping update")
	}
}

func (a *App) addConnection(conn *Connection) {
	a.connLock.Lock()
	old, ok := a.connections[conn.ID]
	a.connections[conn.ID] = conn
	a.connLock.Unlock()

	if ok {
		old.Disconnect()
	}
}

func (a *App) removeConnection(conn *Connection) {
	a.connLock.Lock()
	defer a.connLock.Unlock()
	if a.connections[conn.ID] == conn {
		delete(a.connections, conn.ID)
	}
}

func (a *App) takeConnections() []*Connection {
	a.connLock.Lock()
	defer a.connLock.Unlock()
	conns := make([]*Connection, 0, len(a.connections))
	for id, conn := range a.connections {
		conns = append(conns, conn)
		delete(a.connections, id)
	}
	return conns
}

func (a *App) broadcastHud(hud models.Hud) {
	a.connLock.Lock()
	defer a.connLock.Unlock()
	for _, conn := range a.connections {
		conn.SendHud(hud)
	}
}
