// Package kafka holds broker settings shared by the notification producer.
package kafka

import (
	"strings"
	"time"
)

// ProducerConfig configures the notification producer.
type ProducerConfig struct {
	Brokers         []string
	ClientID        string
	Acks            string // "0", "1" or "all"
	Retries         int
	DeliveryTimeout time.Duration
}

// DefaultProducerConfig waits for all in-sync replicas; a lock alert that is
// acknowledged but lost is worse than a slow one.
func DefaultProducerConfig(brokers string) ProducerConfig {
	return ProducerConfig{
		Brokers:         SplitBrokers(brokers),
		ClientID:        "lockgate",
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 30 * time.Second,
	}
}

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(brokers string) []string {
	var out []string
	for b := range strings.SplitSeq(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
