// Package negotiate implements the initialize handshake: picking a
// mutually supported protocol version, computing the effective capability
// set for a session, and creating that session in pkg/session. It
// satisfies pkg/router.InitializeHandler so the router never needs to
// know how a session comes into being.
package negotiate

import (
	"context"

	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
	"github.com/fyrsmithlabs/gomcp/pkg/registry"
	"github.com/fyrsmithlabs/gomcp/pkg/session"
)

// ServerInfo identifies this server implementation in the initialize
// response.
type ServerInfo struct {
	Name    string
	Version string
}

// Manager negotiates protocol version and capabilities for each
// initialize call and creates the resulting session.
type Manager struct {
	registry   *registry.Registry
	sessions   *session.Manager
	serverInfo protocol.Implementation
}

// New constructs a Manager. info identifies this server in the
// InitializeResult's serverInfo field.
func New(reg *registry.Registry, sessions *session.Manager, info ServerInfo) *Manager {
	return &Manager{
		registry:   reg,
		sessions:   sessions,
		serverInfo: protocol.Implementation{Name: info.Name, Version: info.Version},
	}
}

// Negotiate picks the version this server will speak for a client's
// requested version: an exact match against the compatibility table in
// protocol.SupportedVersions, or ProtocolVersionMismatch if the requested
// version isn't in it. There is no "fall back to our preferred version"
// path: silently speaking a version the client never asked for is exactly
// the kind of overlap-that-isn't-real-overlap this check exists to catch.
func Negotiate(requested protocol.ProtocolVersion) (protocol.ProtocolVersion, *mcperr.Error) {
	if requested == "" {
		return "", mcperr.ProtocolVersionMismatch("(empty)")
	}
	for _, v := range protocol.SupportedVersions {
		if v == requested {
			return v, nil
		}
	}
	return "", mcperr.ProtocolVersionMismatch(string(requested))
}

// ServerCapabilities reports what this server can currently do, derived
// from what is actually registered rather than a static declaration, so a
// freshly started server with no tools registered yet doesn't advertise
// tool support it can't back up.
func (m *Manager) ServerCapabilities() protocol.Capabilities {
	var caps protocol.Capabilities
	if len(m.registry.ListTools()) > 0 {
		caps.Tools = &protocol.ToolsCapability{ListChanged: true}
	}
	if len(m.registry.ListPrompts()) > 0 {
		caps.Prompts = &protocol.PromptsCapability{ListChanged: true}
	}
	if len(m.registry.ListResources()) > 0 {
		caps.Resources = &protocol.ResourcesCapability{Subscribe: true, ListChanged: true}
	}
	caps.Logging = &protocol.LoggingCapability{}
	return caps
}

// Intersect computes the effective capability set for a session: a
// capability is present in the result only if both sides declared it.
// This is what gates server-initiated behavior (e.g. a resource-changed
// notification is only ever sent to a session whose intersected
// Capabilities.Resources is non-nil).
func Intersect(client, server protocol.Capabilities) protocol.Capabilities {
	var out protocol.Capabilities
	if client.Tools != nil && server.Tools != nil {
		out.Tools = &protocol.ToolsCapability{ListChanged: client.Tools.ListChanged && server.Tools.ListChanged}
	}
	if client.Prompts != nil && server.Prompts != nil {
		out.Prompts = &protocol.PromptsCapability{ListChanged: client.Prompts.ListChanged && server.Prompts.ListChanged}
	}
	if client.Resources != nil && server.Resources != nil {
		out.Resources = &protocol.ResourcesCapability{
			Subscribe:   client.Resources.Subscribe && server.Resources.Subscribe,
			ListChanged: client.Resources.ListChanged && server.Resources.ListChanged,
		}
	}
	if client.Logging != nil && server.Logging != nil {
		out.Logging = &protocol.LoggingCapability{}
	}
	return out
}

// Initialize implements pkg/router.InitializeHandler: it negotiates a
// protocol version, intersects capabilities, creates the session, and
// returns the InitializeResult the client sees.
func (m *Manager) Initialize(ctx context.Context, params protocol.InitializeParams) (*protocol.InitializeResult, *session.Session, *mcperr.Error) {
	version, err := Negotiate(params.ProtocolVersion)
	if err != nil {
		return nil, nil, err
	}

	serverCaps := m.ServerCapabilities()
	effective := Intersect(params.Capabilities, serverCaps)

	sess, serr := m.sessions.Create(params.ClientInfo, version, effective)
	if serr != nil {
		return nil, nil, serr
	}

	return &protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    serverCaps,
		ServerInfo:      m.serverInfo,
	}, sess, nil
}
