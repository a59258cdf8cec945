package llm

// Tool is a declarative function schema offered to the provider.
// Nothing in this service executes a tool.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes one tool.
type FunctionSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Schema is the JSON-schema subset the catalog needs.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is a single parameter of a tool.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

func str(desc string) Property { return Property{Type: "string", Description: desc} }

func enum(desc string, values ...string) Property {
	return Property{Type: "string", Description: desc, Enum: values}
}

func obj(desc string) Property { return Property{Type: "object", Description: desc} }

func strList(desc string) Property {
	return Property{Type: "array", Items: &Property{Type: "string"}, Description: desc}
}

func function(name, desc string, props map[string]Property, required ...string) Tool {
	return Tool{
		Type: "function",
		Function: FunctionSpec{
			Name:        name,
			Description: desc,
			Parameters:  Schema{Type: "object", Properties: props, Required: required},
		},
	}
}

var catalog = []Tool{
	function("web_scraper",
		"Extract data from websites including text, tables, links, and structured content. Supports pagination and dynamic content loading.",
		map[string]Property{
			"url":          str("URL to scrape"),
			"selectors":    strList("CSS selectors for specific elements"),
			"extract_type": enum("Type of content to extract", "text", "html", "table", "links", "images"),
		}, "url", "extract_type"),
	function("api_integration",
		"Connect and interact with external APIs for data exchange, automation, and third-party service integration.",
		map[string]Property{
			"endpoint": str("API endpoint URL"),
			"method":   enum("", "GET", "POST", "PUT", "DELETE", "PATCH"),
			"headers":  obj("Request headers"),
			"body":     obj("Request payload"),
		}, "endpoint", "method"),
	function("content_generator",
		"Generate various types of content including articles, social media posts, emails, code, and marketing copy.",
		map[string]Property{
			"content_type": enum("", "article", "email", "social_post", "code", "marketing_copy", "blog_post"),
			"topic":        str("Topic or subject for content generation"),
			"tone":         enum("", "professional", "casual", "technical", "creative", "formal"),
			"length":       enum("", "short", "medium", "long"),
		}, "content_type", "topic"),
	function("data_analyzer",
		"Analyze datasets, extract insights, generate reports, and visualize data trends.",
		map[string]Property{
			"data_source":   str("Source of data (file path, database query, API)"),
			"analysis_type": enum("", "statistical", "trend", "comparison", "prediction", "sentiment"),
			"output_format": enum("", "report", "chart", "summary", "detailed"),
		}, "data_source", "analysis_type"),
	function("workflow_automator",
		"Create and execute automated workflows for business processes, task scheduling, and system integration.",
		map[string]Property{
			"workflow_type": enum("", "email_automation", "data_sync", "report_generation", "task_scheduling", "notification_system"),
			"trigger":       str("What triggers the workflow"),
			"actions":       strList("List of actions to perform"),
			"schedule":      str("Cron expression or schedule description"),
		}, "workflow_type", "actions"),
	function("file_processor",
		"Process, convert, and manipulate files including PDFs, images, documents, and spreadsheets.",
		map[string]Property{
			"file_path":     str("Path to the file"),
			"operation":     enum("", "convert", "extract_text", "compress", "merge", "split", "analyze"),
			"output_format": str("Desired output format"),
		}, "file_path", "operation"),
	function("database_query",
		"Query and manipulate database records for data retrieval and management.",
		map[string]Property{
			"table":     str("Database table name"),
			"operation": enum("", "select", "insert", "update", "delete", "aggregate"),
			"filters":   obj("Query filters and conditions"),
			"fields":    strList("Fields to operate on"),
		}, "table", "operation"),
	function("image_generator",
		"Generate, edit, and manipulate images using AI.",
		map[string]Property{
			"prompt":     str("Description of the image to generate"),
			"style":      enum("", "realistic", "artistic", "logo", "illustration", "photo"),
			"dimensions": str("Image dimensions (e.g., 1024x1024)"),
		}, "prompt"),
	function("email_sender",
		"Send automated emails with templates, attachments, and scheduling.",
		map[string]Property{
			"to":          strList("Recipient email addresses"),
			"subject":     str("Email subject line"),
			"body":        str("Email content"),
			"template":    str("Email template name"),
			"attachments": strList("File paths for attachments"),
		}, "to", "subject", "body"),
	function("chatbot_responder",
		"Generate intelligent responses for customer support chatbots and conversational AI.",
		map[string]Property{
			"user_message":   str("User's message or query"),
			"context":        obj("Conversation context and history"),
			"intent":         str("Detected intent of the message"),
			"knowledge_base": str("Knowledge base to reference"),
		}, "user_message"),
}

// Tools returns a copy of the fixed agent tool catalog.
func Tools() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// ToolNames lists catalog entries in order.
func ToolNames() []string {
	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Function.Name
	}
	return names
}
