package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttTimeout = 5 * time.Second
	mqttQoS     = byte(1)
)

func mqttBrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return fmt.Sprintf("tcp://%s", broker)
}

func responseTopic(commandTopic string) string {
	return commandTopic + "/response"
}

// startMQTT takes commands from the command topic and publishes every status
// change, retained, on the status topic.
func (a *App) startMQTT(ctx context.Context) error {
	mqttCfg := a.cfg.MQTTCfg

	opts := mqtt.NewClientOptions()
	opts.AddBroker(mqttBrokerURL(mqttCfg.Broker))
	opts.SetClientID(mqttCfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(client mqtt.Client) {
		log.Infof("mqtt connected to %s", mqttCfg.Broker)
		token := client.Subscribe(mqttCfg.CommandTopic, mqttQoS, a.onMQTTCommand)
		if !token.WaitTimeout(mqttTimeout) {
			log.Errorf("mqtt subscribe to %s timed out", mqttCfg.CommandTopic)
			return
		}
		if err := token.Error(); err != nil {
			log.Errorf("mqtt subscribe to %s failed: %s", mqttCfg.CommandTopic, err)
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Warnf("mqtt connection lost, will auto-reconnect: %s", err)
	}

	a.mqttClient = mqtt.NewClient(opts)
	token := a.mqttClient.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt connection to %s timed out", mqttCfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	defer func() {
		a.publishStatus(toStatus(a.controller.Status()))
		a.mqttClient.Disconnect(250)
		log.Info("mqtt disconnected")
	}()

	a.publishStatus(toStatus(a.controller.Status()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status := <-a.statusChannel:
			a.publishStatus(toStatus(status))
		}
	}
}

func (a *App) onMQTTCommand(client mqtt.Client, msg mqtt.Message) {
	req := models.CommandReq{}
	err := decode(string(msg.Payload()), &req)
	if err != nil {
		log.Warnf("mqtt command on %s failed unmarshaling: %s", msg.Topic(), msg.Payload())
		return
	}
	req.Source = "mqtt"

	// paho calls handlers in order, only the reply wait leaves the handler
	wait := a.submitCommand(context.Background(), req)
	go func() {
		a.publish(responseTopic(a.cfg.MQTTCfg.CommandTopic), false, wait())
	}()
}

func (a *App) publishStatus(status models.Status) {
	a.publish(a.cfg.MQTTCfg.StatusTopic, true, status)
}

func (a *App) publish(topic string, retained bool, obj any) {
	if a.mqttClient == nil || !a.mqttClient.IsConnected() {
		return
	}

	payload, err := encode(obj)
	if err != nil {
		log.Warnf("failed encoding mqtt payload: %s", err)
		return
	}

	token := a.mqttClient.Publish(topic, mqttQoS, retained, payload)
	if !token.WaitTimeout(mqttTimeout) {
		log.Warnf("mqtt publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Warnf("mqtt publish to %s failed: %s", topic, err)
	}
}
