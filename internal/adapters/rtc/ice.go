// Package rtc builds the WebRTC configuration handed to browsers. The
// coordinator never opens peer connections itself.
package rtc

import (
	"errors"
	"fmt"

	"github.com/dkeye/huddle/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

var ErrTURNCredentials = errors.New("turn server requires username and credential")

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers validates the configured servers and converts them. An empty
// list falls back to DefaultICEServers.
func ICEServers(cfg []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(cfg) == 0 {
		return DefaultICEServers(), nil
	}

	out := make([]webrtc.ICEServer, 0, len(cfg))
	for i, s := range cfg {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice_servers[%d]: no urls", i)
		}
		for _, raw := range s.URLs {
			uri, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice_servers[%d]: %q: %w", i, raw, err)
			}
			isTURN := uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS
			if isTURN && (s.Username == "" || s.Credential == "") {
				return nil, fmt.Errorf("ice_servers[%d]: %q: %w", i, raw, ErrTURNCredentials)
			}
		}
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out, nil
}
