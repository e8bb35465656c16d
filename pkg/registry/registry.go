// Package registry holds the server's catalog of tools, prompts, and
// resources, and resolves a resource URI against the registered static
// and templated resource entries.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
	"github.com/fyrsmithlabs/gomcp/pkg/registry/uritemplate"
)

// ToolHandler executes a tool call. args is the raw "arguments" object from
// the tools/call request, already validated against the tool's InputSchema.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error)

// PromptHandler resolves a prompt template into concrete messages.
type PromptHandler func(ctx context.Context, args map[string]string) (*protocol.PromptsGetResult, *mcperr.Error)

// ResourceHandler reads a resource. vars holds any URI template variables
// extracted for this match; it is empty for statically registered resources.
type ResourceHandler func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error)

type toolEntry struct {
	tool    protocol.Tool
	handler ToolHandler
}

type promptEntry struct {
	prompt  protocol.Prompt
	handler PromptHandler
}

type resourceEntry struct {
	resource protocol.Resource
	handler  ResourceHandler
	template *uritemplate.Template // nil for statically-registered resources
}

// Registry is the server's handler catalog. Safe for concurrent use: reads
// (List*, Tool, Prompt, Resource, HasTool) take an RLock, mutations
// (Register*) take a Lock.
type Registry struct {
	mu sync.RWMutex

	tools       map[string]*toolEntry
	prompts     map[string]*promptEntry
	staticRes   map[string]*resourceEntry
	templateRes []*resourceEntry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		tools:     make(map[string]*toolEntry),
		prompts:   make(map[string]*promptEntry),
		staticRes: make(map[string]*resourceEntry),
	}
}

// RegisterTool adds a tool. Returns an error if a tool with the same name
// is already registered.
func (r *Registry) RegisterTool(tool protocol.Tool, handler ToolHandler) error {
	if tool.Name == "" {
		return fmt.Errorf("registry: tool name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("registry: tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = &toolEntry{tool: tool, handler: handler}
	return nil
}

// RegisterPrompt adds a prompt template.
func (r *Registry) RegisterPrompt(prompt protocol.Prompt, handler PromptHandler) error {
	if prompt.Name == "" {
		return fmt.Errorf("registry: prompt name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[prompt.Name]; exists {
		return fmt.Errorf("registry: prompt %q already registered", prompt.Name)
	}
	r.prompts[prompt.Name] = &promptEntry{prompt: prompt, handler: handler}
	return nil
}

// RegisterResource adds a statically-addressed resource (an exact URI, no
// template variables).
func (r *Registry) RegisterResource(resource protocol.Resource, handler ResourceHandler) error {
	if resource.URI == "" {
		return fmt.Errorf("registry: resource URI must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.staticRes[resource.URI]; exists {
		return fmt.Errorf("registry: resource %q already registered", resource.URI)
	}
	r.staticRes[resource.URI] = &resourceEntry{resource: resource, handler: handler}
	return nil
}

// RegisterResourceTemplate adds an RFC 6570 URI-templated resource.
// Overlapping templates are resolved at match time by the tie-break rule
// in pkg/registry/uritemplate: longer literal prefix wins, ties broken
// lexicographically. A template that is mutually indistinguishable from
// one already registered — same literal skeleton, differing only in its
// variable names — is rejected outright: there is no tie-break rule that
// could pick between two templates that accept identical URIs, so letting
// both in would make the winner a silent accident of registration order.
func (r *Registry) RegisterResourceTemplate(pattern string, resource protocol.Resource, handler ResourceHandler) error {
	tpl, err := uritemplate.Compile(pattern)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.templateRes {
		if uritemplate.Indistinguishable(tpl, e.template) {
			return fmt.Errorf("registry: resource template %q is indistinguishable from already-registered %q", pattern, e.template.Raw)
		}
	}
	r.templateRes = append(r.templateRes, &resourceEntry{resource: resource, handler: handler, template: tpl})
	return nil
}

// ListTools returns every registered tool, sorted by name for deterministic
// output.
func (r *Registry) ListTools() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListPrompts returns every registered prompt, sorted by name.
func (r *Registry) ListPrompts() []protocol.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Prompt, 0, len(r.prompts))
	for _, e := range r.prompts {
		out = append(out, e.prompt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListResources returns every registered resource (static and template),
// sorted by URI/pattern.
func (r *Registry) ListResources() []protocol.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Resource, 0, len(r.staticRes)+len(r.templateRes))
	for _, e := range r.staticRes {
		out = append(out, e.resource)
	}
	for _, e := range r.templateRes {
		out = append(out, e.resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// Tool looks up a tool by name and validates args against its InputSchema.
func (r *Registry) Tool(ctx context.Context, name string, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, mcperr.ToolNotFound(name)
	}
	if err := protocol.ValidateAgainstSchema(e.tool.InputSchema, args); err != nil {
		return nil, mcperr.InvalidParams(err.Error())
	}

	result, herr := e.handler(ctx, args)
	if herr != nil {
		return nil, herr
	}

	if len(e.tool.OutputSchema) > 0 {
		if err := protocol.ValidateAgainstSchema(e.tool.OutputSchema, result.StructuredContent); err != nil {
			return nil, mcperr.InternalError(fmt.Sprintf("tool %q returned a result violating its output schema: %v", name, err))
		}
	}
	return result, nil
}

// Prompt looks up a prompt by name.
func (r *Registry) Prompt(ctx context.Context, name string, args map[string]string) (*protocol.PromptsGetResult, *mcperr.Error) {
	r.mu.RLock()
	e, ok := r.prompts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, mcperr.PromptNotFound(name)
	}
	return e.handler(ctx, args)
}

// Resource resolves uri against static resources first, then templated
// resources (applying the tie-break rule among overlapping matches), and
// invokes the winning handler.
func (r *Registry) Resource(ctx context.Context, uri string) (*protocol.ResourcesReadResult, *mcperr.Error) {
	r.mu.RLock()
	if e, ok := r.staticRes[uri]; ok {
		r.mu.RUnlock()
		return e.handler(ctx, uri, nil)
	}

	var best *resourceEntry
	var bestVars map[string]string
	for _, e := range r.templateRes {
		vars, ok := e.template.Match(uri)
		if !ok {
			continue
		}
		if best == nil || uritemplate.Less(e.template, best.template) {
			best = e
			bestVars = vars
		}
	}
	r.mu.RUnlock()

	if best == nil {
		return nil, mcperr.ResourceNotFound(uri)
	}
	return best.handler(ctx, uri, bestVars)
}

// HasTool reports whether a tool with the given name is registered.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}
