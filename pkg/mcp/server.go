package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/topolord/topolord/pkg/client"
)

// Server adapts topolord-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"topolord",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// topology://graph
	s.mcpServer.AddResource(mcp.NewResource(
		"topology://graph",
		"Service Topology",
		mcp.WithResourceDescription("The full service dependency graph: services, dependencies, applications"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadTopology)

	// topology://applications
	s.mcpServer.AddResource(mcp.NewResource(
		"topology://applications",
		"Application Groupings",
		mcp.WithResourceDescription("User-defined application groupings and their member services"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadApplications)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"add_service",
		mcp.WithDescription("Create a manual service in the topology."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Service identifier (e.g. 'payments-api')")),
		mcp.WithString("display_name", mcp.Description("Human-readable name (defaults to id)")),
		mcp.WithString("team", mcp.Description("Owning team")),
		mcp.WithString("category", mcp.Description("Service category (e.g. 'database', 'http')")),
	), s.handleAddService)

	s.mcpServer.AddTool(mcp.NewTool(
		"add_dependency",
		mcp.WithDescription("Create a dependency edge between two manual services."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("The calling service")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("The called service")),
		mcp.WithString("protocol", mcp.Description("Edge protocol (e.g. 'http', 'tcp')")),
	), s.handleAddDependency)

	s.mcpServer.AddTool(mcp.NewTool(
		"create_application",
		mcp.WithDescription("Group services into a named application."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Application name")),
		mcp.WithString("service_ids", mcp.Required(), mcp.Description("Comma-separated member service ids")),
	), s.handleCreateApplication)

	s.mcpServer.AddTool(mcp.NewTool(
		"import_topology",
		mcp.WithDescription("Import a CSV or YAML topology document."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The document body")),
		mcp.WithString("format", mcp.Description("'csv' or 'yaml'; sniffed when empty")),
	), s.handleImportTopology)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"topolord-aware",
		mcp.WithPromptDescription("Provides context about topolord concepts (Services, Dependencies, Applications)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadTopology(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	graph, err := s.apiClient.GetTopology(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topology: %w", err)
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal topology: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadApplications(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	apps, err := s.apiClient.GetApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applications: %w", err)
	}

	data, err := json.MarshalIndent(apps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal applications: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAddService(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "id", "")
	displayName := mcp.ParseString(request, "display_name", id)

	svc, err := s.apiClient.CreateService(ctx, client.ServiceRequest{
		ID:          id,
		DisplayName: displayName,
		Team:        mcp.ParseString(request, "team", ""),
		Category:    mcp.ParseString(request, "category", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created service %s (%s)", svc.ID, svc.DisplayName)), nil
}

func (s *Server) handleAddDependency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := client.DependencyRequest{
		SourceID: mcp.ParseString(request, "source_id", ""),
		TargetID: mcp.ParseString(request, "target_id", ""),
		Protocol: mcp.ParseString(request, "protocol", ""),
	}

	if err := s.apiClient.CreateDependency(ctx, req); err != nil {
		if client.IsNotManual(err) {
			return mcp.NewToolResultError("One of the endpoints is provider-discovered and cannot be edited"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created dependency %s -> %s", req.SourceID, req.TargetID)), nil
}

func (s *Server) handleCreateApplication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	serviceIDs := splitCSV(mcp.ParseString(request, "service_ids", ""))

	app, err := s.apiClient.CreateApplication(ctx, client.ApplicationRequest{
		Name:       name,
		ServiceIDs: serviceIDs,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created application %s (%s) with %d services", app.Name, app.ID, len(app.ServiceIDs))), nil
}

func (s *Server) handleImportTopology(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := mcp.ParseString(request, "content", "")
	format := mcp.ParseString(request, "format", "")

	result, err := s.apiClient.Import(ctx, format, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Imported %d services and %d dependencies (%s)",
		result.Services, result.Dependencies, result.Format)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "topolord-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with topolord, a service topology daemon.

Concepts:
- Service: A monitored component (host, container, database). Services are
  either discovered by a provider integration or created manually. Only
  manual services can be edited or deleted.
- Dependency: A directed edge meaning the source service calls the target.
- Application: A user-defined named grouping of services. One service can
  belong to several applications.

Read the 'topology://graph' resource before modifying anything. Use the
'add_service', 'add_dependency', 'create_application' and 'import_topology'
tools for changes.
If a tool reports that an entity is provider-discovered, do not retry; the
integration owns it.
`

	return mcp.NewGetPromptResult(
		"topolord-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := trimSpace(s[start:i])
			if part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
