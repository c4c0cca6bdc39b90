package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking"
)

type fixMessage struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Accuracy    float64  `json:"accuracy"`
	Speed       *float64 `json:"speed,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
}

type permissionMessage struct {
	Granted bool `json:"granted"`
}

const (
	metersPerDegree = 111320.0
	walkSpeed       = 1.4 // m/s
)

// walker moves in a slowly turning line from a start point.
type walker struct {
	lat, lon float64
	heading  float64
}

func (w *walker) step(elapsed time.Duration) {
	w.heading += (rand.Float64() - 0.5) * 0.6
	d := walkSpeed * elapsed.Seconds()
	w.lat += d * math.Cos(w.heading) / metersPerDegree
	w.lon += d * math.Sin(w.heading) / (metersPerDegree * math.Cos(w.lat*math.Pi/180))
}

// sample adds sensor noise to the walker's position. Roughly one fix in
// twenty is a spoofed jump of a few hundred meters, and one in ten has poor
// accuracy.
func (w *walker) sample() fixMessage {
	accuracy := 4 + rand.Float64()*8
	if rand.Float64() < 0.1 {
		accuracy = 25 + rand.Float64()*600
	}
	jitter := accuracy / 3 / metersPerDegree
	lat := w.lat + (rand.Float64()-0.5)*jitter
	lon := w.lon + (rand.Float64()-0.5)*jitter
	if rand.Float64() < 0.05 {
		lat += (200 + rand.Float64()*300) / metersPerDegree
	}

	speed := walkSpeed + (rand.Float64()-0.5)*0.4
	return fixMessage{
		Latitude:    lat,
		Longitude:   lon,
		Accuracy:    accuracy,
		Speed:       &speed,
		TimestampMs: time.Now().UnixMilli(),
	}
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <session_id> <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}

	sessionID := os.Args[1]
	intervalSec, err := strconv.Atoi(os.Args[2])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("walk-mock-publisher-" + sessionID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	grant, _ := json.Marshal(permissionMessage{Granted: true})
	permTopic := tracking.PermissionTopic(sessionID)
	if token := client.Publish(permTopic, 1, false, grant); token.Wait() && token.Error() != nil {
		log.Fatalf("publish permission: %v", token.Error())
	}
	log.Printf("granted location permission on %s", permTopic)

	w := &walker{lat: -0.1807, lon: -78.4678, heading: rand.Float64() * 2 * math.Pi}
	topic := tracking.FixTopic(sessionID)
	interval := time.Duration(intervalSec) * time.Second

	log.Printf("connected to %s, publishing to %s every %ds...", broker, topic, intervalSec)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		w.step(interval)
		payload, _ := json.Marshal(w.sample())

		token := client.Publish(topic, 1, false, payload)
		token.Wait()

		log.Printf("published to %s: %s", topic, payload)
	}
}
