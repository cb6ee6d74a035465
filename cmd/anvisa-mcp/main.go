package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/anvisa/models"
)

func main() {
	apiURL := os.Getenv("ANVISA_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}

	s := server.NewMCPServer(
		"anvisa",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("anvisa_search",
		mcp.WithDescription("Search the ANVISA medicines registry for a substance and optional brand. Returns every matching registration with its documents, presentations and a summary."),
		mcp.WithString("substance",
			mcp.Required(),
			mcp.Description("Active ingredient, in any language (e.g. 'darolutamide')"),
		),
		mcp.WithString("brand",
			mcp.Description("Commercial product name (e.g. 'Nubeqa'). When given, the brand listing is searched first."),
		),
		mcp.WithBoolean("translate",
			mcp.Description("Translate the terms to Brazilian Portuguese before searching (default: true)"),
		),
		mcp.WithBoolean("use_proxy",
			mcp.Description("Route the browser session through the next configured proxy (default: false)"),
		),
	)
	s.AddTool(searchTool, handleSearch(newClient(apiURL, os.Getenv("ANVISA_API_KEY"))))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newClient returns a client for the search API. Searches drive a real
// browser through many pages, so the timeout is generous.
func newClient(apiURL, apiKey string) *resty.Client {
	c := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(6*time.Minute).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return c
}

// searchPayload mirrors models.SearchRequest with explicit optionals.
type searchPayload struct {
	Substance string `json:"substance"`
	Brand     string `json:"brand,omitempty"`
	Translate bool   `json:"translate"`
	UseProxy  bool   `json:"use_proxy,omitempty"`
}

func handleSearch(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		substance, err := request.RequireString("substance")
		if err != nil {
			return mcp.NewToolResultError("substance is required"), nil
		}

		payload := searchPayload{
			Substance: substance,
			Brand:     request.GetString("brand", ""),
			Translate: request.GetBool("translate", true),
			UseProxy:  request.GetBool("use_proxy", false),
		}

		var result models.SearchResult
		var apiErr models.ErrorResponse
		resp, err := client.R().
			SetContext(ctx).
			SetBody(payload).
			SetResult(&result).
			SetError(&apiErr).
			Post("/api/v1/search")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if resp.IsError() {
			msg := fmt.Sprintf("search failed with HTTP %d", resp.StatusCode())
			if apiErr.Error != nil {
				msg = fmt.Sprintf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		text, err := formatResult(&result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
