package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/dersize/core/events"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
	"github.com/kilianp07/dersize/internal/eventbus"
)

// TestIntegration forwards search events through a real Mosquitto broker.
func TestIntegration(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:1.6",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("it-sub"))
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscriber connect: %v", tok.Error())
	}
	defer sub.Disconnect(250)
	msgs := make(chan []byte, 4)
	if tok := sub.Subscribe("it/+/evaluation", 1, func(_ paho.Client, m paho.Message) {
		msgs <- m.Payload()
	}); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	var cli *PahoClient
	for i := 0; i < 5; i++ {
		cli, err = NewPahoClient(Config{Broker: broker, TopicPrefix: "it", QoS: map[string]byte{"event": 1}}, nil)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer cli.Disconnect()

	bus := eventbus.New()
	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	Forward(fwdCtx, bus, cli, nil)
	bus.Publish(events.EvaluationEvent{
		RunID:    "run42",
		Strategy: search.StrategyTraversal,
		Row:      search.Row{Candidate: model.CandidateSize{PVKW: 200, BatteryKW: 100}, Verdict: model.NewVerdict(nil)},
		Time:     time.Now(),
	})

	select {
	case got := <-msgs:
		var m EvaluationMessage
		if err := json.Unmarshal(got, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.RunID != "run42" || m.PVKW != 200 || m.Status != model.StatusSuccess {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
