package domain

type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type DocumentSearchQuery struct {
	Company   string     `json:"company"`
	Query     string     `json:"q,omitempty"`
	Type      string     `json:"type,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
}

type EmailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Todo struct {
	Title                string   `json:"title"`
	Description          string   `json:"description,omitempty"`
	Status               string   `json:"status,omitempty"`
	Priority             string   `json:"priority,omitempty"`
	DueDate              string   `json:"dueDate,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	AssigneeIDs          []int    `json:"assigneeIds,omitempty"`
	RelatedDocumentID    int      `json:"relatedDocumentId,omitempty"`
	RelatedTransactionID string   `json:"relatedTransactionId,omitempty"`
}

// FinancialTopic is one of the company financial info views the backend exposes.
type FinancialTopic string

const (
	TopicSummary     FinancialTopic = "summary"
	TopicAccounts    FinancialTopic = "accounts"
	TopicOutstanding FinancialTopic = "outstanding"
	TopicBalance     FinancialTopic = "balance"
	TopicAudit       FinancialTopic = "audit"
)
