// Command nmea_publisher reads a serial GPS receiver and publishes its fixes
// as the positioning source of one walk.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/gps"
)

type fixMessage struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Accuracy    float64  `json:"accuracy"`
	Speed       *float64 `json:"speed,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <session_id>\n", os.Args[0])
		os.Exit(1)
	}
	sessionID := os.Args[1]

	baud, err := strconv.Atoi(getEnv("GPS_BAUD", "9600"))
	if err != nil || baud <= 0 {
		log.Fatalf("GPS_BAUD must be a positive integer")
	}

	broker := getEnv("MQTT_BROKER", "tcp://localhost:1883")
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("walk-nmea-publisher-" + sessionID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	serialOpts := serial.OpenOptions{
		PortName:        getEnv("GPS_PORT", "/dev/ttyUSB0"),
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		log.Fatalf("open %s: %v", serialOpts.PortName, err)
	}
	defer func() { _ = port.Close() }()
	log.Printf("reading NMEA from %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	topic := tracking.FixTopic(sessionID)
	reader := gps.NewReader(port)
	for {
		fix, err := reader.Next()
		if errors.Is(err, io.EOF) {
			log.Println("gps stream ended")
			return
		}
		if err != nil {
			log.Fatalf("gps read: %v", err)
		}

		payload, _ := json.Marshal(fixMessage{
			Latitude:    fix.Lat,
			Longitude:   fix.Lon,
			Accuracy:    fix.Accuracy,
			Speed:       fix.Speed,
			TimestampMs: fix.CapturedAt.UnixMilli(),
		})
		token := client.Publish(topic, 1, false, payload)
		token.Wait()

		log.Printf("published to %s: %s", topic, payload)
	}
}
