package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/your-org/peoplecounter/internal/queue"
	"github.com/your-org/peoplecounter/pkg/dto"
)

const usage = `usage: counterctl [-nats URL] reset
       counterctl [-nats URL] settings [-frequency MS] [-threshold T]`

// counterctl sends commands to running counters over the control subject.
func main() {
	natsURL := flag.String("nats", envOr("PC_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	msg, err := buildMessage(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	producer, err := queue.NewProducer(*natsURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to nats: %v\n", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.PublishControl(msg); err != nil {
		fmt.Fprintf(os.Stderr, "publish control: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sent %s\n", msg.Action)
}

func buildMessage(action string, args []string) (dto.ControlMessage, error) {
	switch action {
	case "reset":
		return dto.ControlMessage{Action: "reset"}, nil
	case "settings":
		fs := flag.NewFlagSet("settings", flag.ContinueOnError)
		freq := fs.Int("frequency", 0, "dashboard update frequency in ms")
		threshold := fs.Float64("threshold", -1, "confidence threshold in [0,1]")
		if err := fs.Parse(args); err != nil {
			return dto.ControlMessage{}, err
		}

		req := &dto.SettingsRequest{}
		if *freq != 0 {
			req.UpdateFrequency = freq
		}
		if *threshold >= 0 {
			req.ConfidenceThreshold = threshold
		}
		if req.UpdateFrequency == nil && req.ConfidenceThreshold == nil {
			return dto.ControlMessage{}, fmt.Errorf("settings needs -frequency or -threshold")
		}
		return dto.ControlMessage{Action: "settings", Settings: req}, nil
	default:
		return dto.ControlMessage{}, fmt.Errorf("unknown command %q", action)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
