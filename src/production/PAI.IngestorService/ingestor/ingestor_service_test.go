package paiingestor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gitlab.com/plantai/plantai.server/src/production/PAI.IngestorService/client"
	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

type doneToken struct{ ch chan struct{} }

func newDoneToken() doneToken {
	ch := make(chan struct{})
	close(ch)
	return doneToken{ch: ch}
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{}          { return t.ch }
func (t doneToken) Error() error                   { return nil }

type publishedMsg struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu        sync.Mutex
	published []publishedMsg
}

func (c *fakeMQTT) IsConnected() bool      { return true }
func (c *fakeMQTT) IsConnectionOpen() bool { return true }
func (c *fakeMQTT) Connect() mqtt.Token    { return newDoneToken() }
func (c *fakeMQTT) Disconnect(uint)        {}
func (c *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMsg{topic: topic, payload: payload.([]byte)})
	return newDoneToken()
}
func (c *fakeMQTT) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token { return newDoneToken() }
func (c *fakeMQTT) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newDoneToken()
}
func (c *fakeMQTT) Unsubscribe(...string) mqtt.Token        { return newDoneToken() }
func (c *fakeMQTT) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeMQTT) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeMQTT) errors(t *testing.T) []models.IngestError {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.IngestError
	for _, m := range c.published {
		var e models.IngestError
		if err := json.Unmarshal(m.payload, &e); err != nil {
			t.Fatalf("error payload on %s: %v", m.topic, err)
		}
		out = append(out, e)
	}
	return out
}

func (c *fakeMQTT) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.published {
		out = append(out, m.topic)
	}
	return out
}

type submission struct {
	deviceID string
	payload  map[string]any
}

type fakeForwarder struct {
	mu          sync.Mutex
	submissions []submission
	err         error
}

func (f *fakeForwarder) SubmitReading(_ context.Context, deviceID string, payload map[string]any) (*models.Readout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{deviceID: deviceID, payload: payload})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Readout{SensorDataID: "r-1", StatusColor: models.StatusGreen}, nil
}

func (f *fakeForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

func newTestIngestor(fwd Forwarder, batchSize int, window time.Duration) (*Ingestor, *fakeMQTT) {
	cfg := config.IngestorConfig{
		MQTT:             config.MQTTConfig{Topic: "plants/+/sensors"},
		Batch:            config.BatchConfig{Size: batchSize, Window: window},
		ErrorTopicPrefix: "ingestor/errors",
	}
	ing := New(cfg, fwd, logger.Nop())
	fake := &fakeMQTT{}
	ing.mqttClient = fake
	return ing, fake
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	cases := []struct {
		topic  string
		device string
		ok     bool
	}{
		{"plants/pot-7/sensors", "pot-7", true},
		{"plants//sensors", "unknown", false},
		{"plants/pot-7/status", "pot-7", false},
		{"plants/pot-7/sensors/extra", "pot-7", false},
		{"garden", "unknown", false},
	}
	for _, tc := range cases {
		device, ok := DeviceIDFromTopic(tc.topic)
		if device != tc.device || ok != tc.ok {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tc.topic, device, ok, tc.device, tc.ok)
		}
	}
}

func TestIngestorForwardsOnBatchSize(t *testing.T) {
	fwd := &fakeForwarder{}
	ing, fake := newTestIngestor(fwd, 2, time.Hour)
	ing.run(context.Background())
	defer ing.Stop()

	ing.handleMessage("plants/pot-1/sensors", []byte(`{"temperature": 22, "pressure": 1013, "humidity": 50, "soil_moisture": 50}`))
	ing.handleMessage("plants/pot-2/sensors", []byte(`{"temperature": 5, "pressure": 1000, "humidity": 15, "soil_moisture": 95}`))

	waitFor(t, func() bool { return fwd.count() == 2 })

	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if fwd.submissions[0].deviceID != "pot-1" || fwd.submissions[1].deviceID != "pot-2" {
		t.Errorf("order: got %+v", fwd.submissions)
	}
	if n, ok := fwd.submissions[0].payload["temperature"].(json.Number); !ok || n.String() != "22" {
		t.Errorf("numbers should be kept as json.Number, got %#v", fwd.submissions[0].payload["temperature"])
	}
	if len(fake.topics()) != 0 {
		t.Errorf("unexpected error publications: %v", fake.topics())
	}
}

func TestIngestorFlushesOnWindow(t *testing.T) {
	fwd := &fakeForwarder{}
	ing, _ := newTestIngestor(fwd, 100, 20*time.Millisecond)
	ing.run(context.Background())
	defer ing.Stop()

	ing.handleMessage("plants/pot-1/sensors", []byte(`{"temperature": 22}`))
	waitFor(t, func() bool { return fwd.count() == 1 })
}

func TestIngestorStopDrainsQueue(t *testing.T) {
	fwd := &fakeForwarder{}
	ing, _ := newTestIngestor(fwd, 100, time.Hour)
	ing.run(context.Background())

	for i := 0; i < 3; i++ {
		ing.handleMessage("plants/pot-1/sensors", []byte(`{}`))
	}
	ing.Stop()

	if fwd.count() != 3 {
		t.Errorf("forwarded %d, want 3", fwd.count())
	}

	// messages after Stop are dropped without blocking
	ing.handleMessage("plants/pot-1/sensors", []byte(`{}`))
	ing.Stop()
}

func TestIngestorReportsBadMessages(t *testing.T) {
	fwd := &fakeForwarder{}
	ing, fake := newTestIngestor(fwd, 1, time.Hour)

	ing.handleMessage("plants/pot-3/status", []byte(`{}`))
	ing.handleMessage("plants/pot-4/sensors", []byte(`not json`))
	ing.handleMessage("plants/pot-5/sensors", []byte(`[1, 2]`))

	topics := fake.topics()
	want := []string{"ingestor/errors/pot-3", "ingestor/errors/pot-4", "ingestor/errors/pot-5"}
	if len(topics) != len(want) {
		t.Fatalf("topics: got %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topic %d: got %q, want %q", i, topics[i], want[i])
		}
	}

	errs := fake.errors(t)
	if errs[0].Error != "invalid_topic" || errs[1].Error != "invalid_payload" || errs[2].Error != "invalid_payload" {
		t.Errorf("got %+v", errs)
	}
	if fwd.count() != 0 {
		t.Errorf("bad messages were forwarded")
	}
}

func TestIngestorReportsRejections(t *testing.T) {
	fwd := &fakeForwarder{err: &client.RejectedError{
		StatusCode: 400,
		Code:       "validation_failed",
		Kind:       "missing_fields",
		Fields:     []string{"pressure"},
		Message:    "missing required fields: pressure",
	}}
	ing, fake := newTestIngestor(fwd, 1, time.Hour)
	ing.run(context.Background())

	ing.handleMessage("plants/pot-9/sensors", []byte(`{"temperature": 22}`))
	ing.Stop()

	errs := fake.errors(t)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error publication, got %d", len(errs))
	}
	e := errs[0]
	if e.DeviceID != "pot-9" || e.Error != "missing_fields" || len(e.Fields) != 1 || e.Fields[0] != "pressure" {
		t.Errorf("got %+v", e)
	}
	if fake.topics()[0] != "ingestor/errors/pot-9" {
		t.Errorf("topic: got %s", fake.topics()[0])
	}
}

func TestIngestorReportsForwardFailures(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("connection refused")}
	ing, fake := newTestIngestor(fwd, 1, time.Hour)
	ing.run(context.Background())

	ing.handleMessage("plants/pot-2/sensors", []byte(`{}`))
	ing.Stop()

	errs := fake.errors(t)
	if len(errs) != 1 || errs[0].Error != "forward_failed" {
		t.Errorf("got %+v", errs)
	}
}
