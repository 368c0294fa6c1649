package main

import (
	"encoding/json"
	"os"
)

// Config mirrors every diode-send CLI flag, overridable by a JSON file via -c.
type Config struct {
	BindTCP            string `json:"bind_tcp"`
	ToUDP              string `json:"to_udp"`
	NbClients          int    `json:"nb_clients"`
	EncodingBlockSize  int    `json:"encoding_block_size"`
	RepairBlockSize    int    `json:"repair_block_size"`
	MTU                int    `json:"mtu"`
	NbEncodingThreads  int    `json:"nb_encoding_threads"`
	HeartbeatSeconds   int    `json:"heartbeat_seconds"`
	FlushTimeoutMillis int    `json:"flush_timeout_millis"`
	BandwidthLimitBits int    `json:"bandwidth_limit_bits"`
	Compression        string `json:"compression"`
	Log                string `json:"log"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
