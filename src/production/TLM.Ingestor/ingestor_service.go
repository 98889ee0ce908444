package tlmingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/deviceauth"
	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Config"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

// report is the MQTT wire form: the HTTP ingest body plus the device
// secret, since MQTT has no request headers to carry it.
type report struct {
	tlmmodels.Report
	Secret string `json:"secret"`
}

// Ingestor subscribes to the telemetry topic and feeds reports into the
// same authorize-then-upsert path as HTTP ingest. Expected topic format:
// telemetry/<device_id>; a device id in the payload wins over the topic.
type Ingestor struct {
	cfg           config.MQTTConfig
	telemetryRepo interfaces.TelemetryRepository
	deviceAuth    *deviceauth.Service
	logger        *logger.Logger
	client        mqtt.Client
	msgCh         chan report
	wg            sync.WaitGroup
}

func New(cfg config.MQTTConfig, telemetryRepo interfaces.TelemetryRepository, deviceAuth *deviceauth.Service, logger *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:           cfg,
		telemetryRepo: telemetryRepo,
		deviceAuth:    deviceAuth,
		logger:        logger.WithComponent("mqtt-ingestor"),
		msgCh:         make(chan report, 4096),
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL()).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.ErrorWithError(err, "mqtt connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.Topic
		if i.cfg.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, i.cfg.Topic)
		}
		i.logger.WithField("topic", topic).Info("mqtt connected, subscribing")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.ErrorWithError(token.Error(), "subscribe error")
		}
	}

	i.client = mqtt.NewClient(opts)
	if tk := i.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.writer(ctx)
	}()

	return nil
}

func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(500)
	}
	close(i.msgCh)
	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.client != nil && i.client.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	var r report
	if err := json.Unmarshal(m.Payload(), &r); err != nil {
		i.logger.WithField("topic", m.Topic()).Warn("dropping undecodable payload")
		return
	}

	if r.DeviceID == "" {
		r.DeviceID = deviceIDFromTopic(m.Topic())
	}
	if r.DeviceID == "" {
		i.logger.WithField("topic", m.Topic()).Warn("dropping report without device id")
		return
	}

	select {
	case i.msgCh <- r:
	default:
		i.logger.WithField("device_id", r.DeviceID).Warn("ingest queue full, dropping report")
	}
}

// writer drains the queue and applies reports one at a time. Upserts are
// last-write-wins per device, so there is nothing to batch.
func (i *Ingestor) writer(ctx context.Context) {
	for r := range i.msgCh {
		if err := i.deviceAuth.Authorize(ctx, r.DeviceID, r.Secret); err != nil {
			i.logger.WithField("device_id", r.DeviceID).Warn("rejected unauthorized report")
			continue
		}

		if r.TS == nil {
			now := time.Now().Unix()
			r.TS = &now
		} else if *r.TS > 1_000_000_000_000 {
			sec := *r.TS / 1000
			r.TS = &sec
		}

		if err := i.telemetryRepo.UpsertReport(ctx, r.Report); err != nil {
			i.logger.ErrorWithError(err, "failed to upsert report")
		}
	}
}

func (i *Ingestor) brokerURL() string {
	scheme := "tcp"
	if i.cfg.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.cfg.BrokerHost, i.cfg.BrokerPort)
}

func (i *Ingestor) tlsConfig(caPath string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// deviceIDFromTopic extracts the device id from telemetry/<device_id>.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
