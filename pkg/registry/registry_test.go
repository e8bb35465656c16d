package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

func echoToolHandler(ctx context.Context, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error) {
	return &protocol.ToolsCallResult{Content: []protocol.Content{{Type: "text", Text: string(args)}}}, nil
}

func TestRegisterAndCallTool(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterTool(protocol.Tool{Name: "echo"}, echoToolHandler))

	res, err := r.Tool(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	require.Nil(t, err)
	assert.Equal(t, `{"x":1}`, res.Content[0].Text)
}

func TestDuplicateToolRegistrationFails(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterTool(protocol.Tool{Name: "echo"}, echoToolHandler))
	assert.Error(t, r.RegisterTool(protocol.Tool{Name: "echo"}, echoToolHandler))
}

func TestUnknownToolReturnsToolNotFound(t *testing.T) {
	r := New()
	_, err := r.Tool(context.Background(), "missing", nil)
	require.NotNil(t, err)
	assert.Equal(t, mcperr.CodeToolNotFound, err.Code)
}

func TestToolInvalidParamsRejected(t *testing.T) {
	r := New()
	schema := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	require.NoError(t, r.RegisterTool(protocol.Tool{Name: "needs_name", InputSchema: schema}, echoToolHandler))

	_, err := r.Tool(context.Background(), "needs_name", json.RawMessage(`{}`))
	require.NotNil(t, err)
	assert.Equal(t, mcperr.CodeInvalidParams, err.Code)
}

func TestToolOutputSchemaValidatesStructuredContent(t *testing.T) {
	r := New()
	outputSchema := json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"}},"required":["status"]}`)

	require.NoError(t, r.RegisterTool(protocol.Tool{
		Name:         "status",
		OutputSchema: outputSchema,
	}, func(ctx context.Context, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error) {
		return &protocol.ToolsCallResult{
			Content:           []protocol.Content{{Type: "text", Text: "ok"}},
			StructuredContent: json.RawMessage(`{"status":"ok"}`),
		}, nil
	}))

	res, err := r.Tool(context.Background(), "status", nil)
	require.Nil(t, err)
	assert.Equal(t, json.RawMessage(`{"status":"ok"}`), res.StructuredContent)
}

func TestToolOutputSchemaViolationReturnsInternalError(t *testing.T) {
	r := New()
	outputSchema := json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"}},"required":["status"]}`)

	require.NoError(t, r.RegisterTool(protocol.Tool{
		Name:         "broken",
		OutputSchema: outputSchema,
	}, func(ctx context.Context, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error) {
		return &protocol.ToolsCallResult{
			Content:           []protocol.Content{{Type: "text", Text: "oops"}},
			StructuredContent: json.RawMessage(`{}`),
		}, nil
	}))

	_, err := r.Tool(context.Background(), "broken", nil)
	require.NotNil(t, err)
	assert.Equal(t, mcperr.CodeInternalError, err.Code)
}

func TestUnknownPromptReturnsPromptNotFound(t *testing.T) {
	r := New()
	_, err := r.Prompt(context.Background(), "missing", nil)
	require.NotNil(t, err)
	assert.Equal(t, mcperr.CodePromptNotFound, err.Code)
}

func TestRegisterAndGetPrompt(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPrompt(protocol.Prompt{Name: "greet"}, func(ctx context.Context, args map[string]string) (*protocol.PromptsGetResult, *mcperr.Error) {
		return &protocol.PromptsGetResult{Messages: []protocol.PromptMessage{{Role: "user", Content: protocol.Content{Type: "text", Text: "hi " + args["name"]}}}}, nil
	}))

	res, err := r.Prompt(context.Background(), "greet", map[string]string{"name": "Alice"})
	require.Nil(t, err)
	assert.Equal(t, "hi Alice", res.Messages[0].Content.Text)
}

func TestListToolsSortedByName(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterTool(protocol.Tool{Name: "zeta"}, echoToolHandler))
	require.NoError(t, r.RegisterTool(protocol.Tool{Name: "alpha"}, echoToolHandler))

	tools := r.ListTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha", tools[0].Name)
	assert.Equal(t, "zeta", tools[1].Name)
}

func TestStaticResourceLookup(t *testing.T) {
	r := New()
	handler := func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error) {
		return &protocol.ResourcesReadResult{Contents: []protocol.ResourceContents{{URI: uri}}}, nil
	}
	require.NoError(t, r.RegisterResource(protocol.Resource{URI: "file:///readme.md"}, handler))

	res, err := r.Resource(context.Background(), "file:///readme.md")
	require.Nil(t, err)
	assert.Equal(t, "file:///readme.md", res.Contents[0].URI)
}

func TestTemplatedResourceLookupExtractsVars(t *testing.T) {
	r := New()
	var gotVars map[string]string
	handler := func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error) {
		gotVars = vars
		return &protocol.ResourcesReadResult{}, nil
	}
	require.NoError(t, r.RegisterResourceTemplate("file:///repos/{owner}/{repo}", protocol.Resource{URI: "file:///repos/{owner}/{repo}"}, handler))

	_, err := r.Resource(context.Background(), "file:///repos/acme/widget")
	require.Nil(t, err)
	assert.Equal(t, "acme", gotVars["owner"])
	assert.Equal(t, "widget", gotVars["repo"])
}

func TestRegisterResourceTemplateRejectsIndistinguishableDuplicate(t *testing.T) {
	r := New()
	handler := func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error) {
		return &protocol.ResourcesReadResult{}, nil
	}
	require.NoError(t, r.RegisterResourceTemplate("config://settings/{section}", protocol.Resource{URI: "config://settings/{section}"}, handler))

	// Same literal skeleton, different variable name: indistinguishable at match time.
	err := r.RegisterResourceTemplate("config://settings/{key}", protocol.Resource{URI: "config://settings/{key}"}, handler)
	assert.Error(t, err)
}

func TestTemplateTieBreakPrefersLongerLiteralPrefix(t *testing.T) {
	r := New()
	var matched string
	generic := func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error) {
		matched = "generic"
		return &protocol.ResourcesReadResult{}, nil
	}
	specific := func(ctx context.Context, uri string, vars map[string]string) (*protocol.ResourcesReadResult, *mcperr.Error) {
		matched = "specific"
		return &protocol.ResourcesReadResult{}, nil
	}
	// Both templates match "res://item-42": the generic one binds the whole
	// trailing segment to {id}, the specific one only binds "42" after its
	// longer literal "item-" prefix. The longer literal prefix must win.
	require.NoError(t, r.RegisterResourceTemplate("res://{id}", protocol.Resource{URI: "res://{id}"}, generic))
	require.NoError(t, r.RegisterResourceTemplate("res://item-{id}", protocol.Resource{URI: "res://item-{id}"}, specific))

	_, err := r.Resource(context.Background(), "res://item-42")
	require.Nil(t, err)
	assert.Equal(t, "specific", matched)
}

func TestUnmatchedResourceReturnsResourceNotFound(t *testing.T) {
	r := New()
	_, err := r.Resource(context.Background(), "file:///nowhere")
	require.NotNil(t, err)
	assert.Equal(t, mcperr.CodeResourceNotFound, err.Code)
}
