// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import "github.com/pion/webrtc/v4"

// ICEConfig holds the ICE server set used during candidate gathering.
// Empty means host candidates only, enough for same-machine and
// same-LAN matches, which is also what the tests rely on.
type ICEConfig struct {
	// Servers is the STUN/TURN list, in the order pion should try
	// them.
	Servers []webrtc.ICEServer
}

// ICEServerConfig is the yaml-friendly form of one ICE server entry.
type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// ICEConfigFrom converts configured server entries into an ICEConfig.
func ICEConfigFrom(servers []ICEServerConfig) ICEConfig {
	config := ICEConfig{}
	for _, server := range servers {
		entry := webrtc.ICEServer{URLs: server.URLs}
		if server.Username != "" {
			entry.Username = server.Username
			entry.Credential = server.Credential
		}
		config.Servers = append(config.Servers, entry)
	}
	return config
}
