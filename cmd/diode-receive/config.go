package main

import (
	"encoding/json"
	"os"
)

// Config mirrors every diode-receive CLI flag, overridable by a JSON file via -c.
type Config struct {
	BindUDP            string `json:"bind_udp"`
	ToTCP              string `json:"to_tcp"`
	EncodingBlockSize  int    `json:"encoding_block_size"`
	RepairBlockSize    int    `json:"repair_block_size"`
	MTU                int    `json:"mtu"`
	NbClients          int    `json:"nb_clients"`
	NbDecodingThreads  int    `json:"nb_decoding_threads"`
	FlushTimeoutMillis int    `json:"flush_timeout_millis"`
	HeartbeatSeconds   int    `json:"heartbeat_seconds"`
	AbortTimeoutMillis int    `json:"abort_timeout_millis"`
	ToBufferSize       int    `json:"to_buffer_size"`
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
