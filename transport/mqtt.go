package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

const publishTimeout = 5 * time.Second

// client is the part of mqtt.Client the radio uses.
type client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Stats are the radio counters reported on the debug display and in metrics.
type Stats struct {
	Uplinks   uint32
	Failed    uint32
	Downlinks uint32
	LastErr   error
	LastSent  time.Time
}

// MQTT is the station radio. Frames go out as binary publishes on
// stations/<id>/uplink and anything arriving on stations/<id>/downlink is
// counted and kept.
type MQTT struct {
	client        client
	uplinkTopic   string
	downlinkTopic string
	timeout       time.Duration

	mu           sync.RWMutex
	joined       bool
	stats        Stats
	lastDownlink []byte

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTT(ep env.Endpoints, stationID string, bootID uuid.UUID) *MQTT {
	m := newMQTT(nil, stationID)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(ep.MQTTBroker)
	opts.SetClientID(fmt.Sprintf("%s-%s", stationID, bootID.String()[:8]))
	if ep.MQTTUser != "" {
		opts.SetUsername(ep.MQTTUser)
		opts.SetPassword(ep.MQTTPassword)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Infof("MQTT connected [%v]", ep.MQTTBroker)
		m.onConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost [%v]", err)
	})

	m.client = mqtt.NewClient(opts)
	return m
}

func newMQTT(c client, stationID string) *MQTT {
	return &MQTT{
		client:        c,
		uplinkTopic:   fmt.Sprintf("stations/%s/uplink", stationID),
		downlinkTopic: fmt.Sprintf("stations/%s/downlink", stationID),
		timeout:       publishTimeout,
		stopCh:        make(chan struct{}),
	}
}

// Connect starts the broker connection and waits for the first attempt to
// finish. The client keeps retrying in the background, so a failure here is
// not fatal: IsJoined turns true whenever a connection first succeeds.
func (m *MQTT) Connect(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return ErrStopped
	default:
	}
	if m.client.IsConnected() {
		return nil
	}

	token := m.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (m *MQTT) onConnect() {
	m.mu.Lock()
	m.joined = true
	m.mu.Unlock()

	token := m.client.Subscribe(m.downlinkTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		m.downlink(msg.Payload())
	})
	if !token.WaitTimeout(m.timeout) {
		logger.Errorf("Subscribe timeout [%v]", m.downlinkTopic)
		return
	}
	if err := token.Error(); err != nil {
		logger.Errorf("Subscribe failed [%v] [%v]", m.downlinkTopic, err)
	}
}

func (m *MQTT) downlink(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Downlinks++
	m.lastDownlink = append(m.lastDownlink[:0], b...)
	logger.Infof("Downlink [%x]", b)
}

// IsJoined stays true once the broker has been reached.
func (m *MQTT) IsJoined() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.joined
}

func (m *MQTT) Send(frame []byte) error {
	err := m.publish(frame)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.LastErr = err
	if err != nil {
		m.stats.Failed++
		return err
	}
	m.stats.Uplinks++
	m.stats.LastSent = time.Now()
	return nil
}

func (m *MQTT) publish(frame []byte) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}
	token := m.client.Publish(m.uplinkTopic, 1, false, frame)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish timeout for topic %s", m.uplinkTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish uplink: %w", err)
	}
	return nil
}

func (m *MQTT) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// LastDownlink returns a copy of the most recent downlink payload.
func (m *MQTT) LastDownlink() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.lastDownlink...)
}

func (m *MQTT) Disconnect() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.client != nil {
		m.client.Disconnect(250)
	}
	logger.Info("MQTT disconnected")
}
