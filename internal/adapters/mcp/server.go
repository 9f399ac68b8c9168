package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
)

const (
	serverName    = "fiscal-assistant"
	serverVersion = "1.0.0"
)

// Tools exposes the accounting backend to a chat assistant. Backend failures are
// returned as tool error results so the model can read and react to them.
type Tools struct {
	backend       ports.Backend
	defaultClient string
	logger        *slog.Logger
}

func NewTools(backend ports.Backend, defaultClientEIN string, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{
		backend:       backend,
		defaultClient: strings.TrimSpace(defaultClientEIN),
		logger:        logger,
	}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("company_financial_info",
		mcp.WithDescription("Fetch financial information for a company: summary, accounts, outstanding, balance or audit."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("One of summary, accounts, outstanding, balance, audit")),
		mcp.WithString("client_ein", mcp.Description("Company EIN; defaults to the configured client")),
	), tools.CompanyFinancialInfo)

	s.AddTool(mcp.NewTool("create_todo",
		mcp.WithDescription("Create a todo item for the accounting team."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short task title")),
		mcp.WithString("description", mcp.Description("Task details")),
		mcp.WithString("priority", mcp.Description("low, medium or high")),
		mcp.WithString("due_date", mcp.Description("Due date, YYYY-MM-DD")),
		mcp.WithString("related_transaction_id", mcp.Description("Bank transaction the task refers to")),
		mcp.WithArray("tags", mcp.Description("Free-form tags"), mcp.WithStringItems()),
		mcp.WithString("client_ein", mcp.Description("Company EIN; defaults to the configured client")),
	), tools.CreateTodo)

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search the company's stored documents."),
		mcp.WithString("q", mcp.Description("Free text query")),
		mcp.WithString("type", mcp.Description("Document type filter")),
		mcp.WithString("from", mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
		mcp.WithString("company", mcp.Description("Company EIN; defaults to the configured client")),
	), tools.SearchDocuments)

	s.AddTool(mcp.NewTool("send_email",
		mcp.WithDescription("Send an email through the backend mailer."),
		mcp.WithArray("to", mcp.Required(), mcp.Description("Recipient addresses"), mcp.WithStringItems()),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
		mcp.WithString("text", mcp.Description("Plain text body")),
		mcp.WithString("html", mcp.Description("HTML body")),
		mcp.WithArray("cc", mcp.WithStringItems()),
		mcp.WithArray("bcc", mcp.WithStringItems()),
	), tools.SendEmail)

	return s
}

func (t *Tools) CompanyFinancialInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	clientID := t.clientFrom(req, "client_ein")
	raw, err := t.backend.CompanyFinancialInfo(ctx, clientID, domain.FinancialTopic(topic))
	return t.result("company_financial_info", raw, err), nil
}

func (t *Tools) CreateTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	todo := domain.Todo{
		Title:                title,
		Description:          req.GetString("description", ""),
		Priority:             req.GetString("priority", ""),
		DueDate:              req.GetString("due_date", ""),
		RelatedTransactionID: req.GetString("related_transaction_id", ""),
		Tags:                 req.GetStringSlice("tags", nil),
	}
	raw, err := t.backend.CreateTodo(ctx, t.clientFrom(req, "client_ein"), todo)
	return t.result("create_todo", raw, err), nil
}

func (t *Tools) SearchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := domain.DocumentSearchQuery{
		Company: t.clientFrom(req, "company"),
		Query:   req.GetString("q", ""),
		Type:    req.GetString("type", ""),
		Page:    req.GetInt("page", 0),
		Limit:   req.GetInt("limit", 0),
	}
	from, to := req.GetString("from", ""), req.GetString("to", "")
	if from != "" || to != "" {
		q.DateRange = &domain.DateRange{From: from, To: to}
	}
	raw, err := t.backend.SearchDocuments(ctx, q)
	return t.result("search_documents", raw, err), nil
}

func (t *Tools) SendEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to, err := req.RequireStringSlice("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	subject, err := req.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	email := domain.Email{
		To:      to,
		Subject: subject,
		Text:    req.GetString("text", ""),
		HTML:    req.GetString("html", ""),
		CC:      req.GetStringSlice("cc", nil),
		BCC:     req.GetStringSlice("bcc", nil),
	}
	raw, err := t.backend.SendEmail(ctx, email)
	return t.result("send_email", raw, err), nil
}

func (t *Tools) clientFrom(req mcp.CallToolRequest, key string) string {
	if v := strings.TrimSpace(req.GetString(key, "")); v != "" {
		return v
	}
	return t.defaultClient
}

func (t *Tools) result(tool string, raw json.RawMessage, err error) *mcp.CallToolResult {
	if err != nil {
		t.logger.Warn("assistant_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("Error: " + err.Error())
	}
	if len(raw) == 0 {
		return mcp.NewToolResultText("{}")
	}
	return mcp.NewToolResultText(string(raw))
}
