package broker

import (
	"net"
	"time"

	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// Session is one registered client.
type Session struct {
	InstanceID  string
	Endpoint    protocol.Endpoint
	Manifest    *manifest.Manifest
	ConnectedAt time.Time

	seq  uint64
	conn net.Conn
}

// ModuleID returns the module id of the session manifest.
func (s *Session) ModuleID() string {
	if s.Manifest == nil {
		return ""
	}
	return s.Manifest.ModuleID
}

// Tool finds the advertised tool for method, by name or "Owner.Name".
func (s *Session) Tool(method string) (manifest.Tool, bool) {
	if s.Manifest == nil {
		return manifest.Tool{}, false
	}
	return s.Manifest.Lookup(method)
}

// SessionInfo is the LIST view of a session.
type SessionInfo struct {
	InstanceID  string          `json:"instanceId"`
	ModuleID    string          `json:"moduleId"`
	Endpoint    string          `json:"endpoint"`
	ConnectedAt time.Time       `json:"connectedAt"`
	Tools       []manifest.Tool `json:"tools"`
}

// Info describes the session for LIST.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		InstanceID:  s.InstanceID,
		ModuleID:    s.ModuleID(),
		Endpoint:    s.Endpoint.String(),
		ConnectedAt: s.ConnectedAt,
	}
	if s.Manifest != nil {
		info.Tools = s.Manifest.Tools
	}
	return info
}

// ListResult is the result payload of a broker LIST.
type ListResult struct {
	Sessions []SessionInfo `json:"sessions"`
}
