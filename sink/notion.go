package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
)

// Notion defaults.
const (
	DefaultDatabaseName = "History Brief"

	// notionTextLimit is the maximum length of a Notion text property.
	notionTextLimit = 2000
)

// ErrMissingNotionConfig is returned when the token or parent page is empty.
var ErrMissingNotionConfig = errors.New("notion token and parent page id are required")

// NotionConfig configures a NotionSink.
type NotionConfig struct {
	Token        string
	ParentPageID string
	DatabaseName string
	// BaseURL sends API calls to another host, such as a local stand-in.
	// Empty uses api.notion.com.
	BaseURL string
	// SourceNames seed the Source select options when the database is
	// created.
	SourceNames []string
	HTTPClient  *http.Client
}

// NotionSink writes one Notion page per record into a database found, or
// created, under a parent page.
type NotionSink struct {
	cfg    NotionConfig
	client *notionapi.Client
	log    logger.Logger
	now    func() time.Time
}

// NewNotionSink validates cfg and creates the sink.
func NewNotionSink(cfg NotionConfig, log logger.Logger) (*NotionSink, error) {
	if cfg.Token == "" || cfg.ParentPageID == "" {
		return nil, ErrMissingNotionConfig
	}
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = DefaultDatabaseName
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("invalid notion base url %q", cfg.BaseURL)
		}
		next := hc.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		rewritten := *hc
		rewritten.Transport = &hostRewriter{base: base, next: next}
		hc = &rewritten
	}

	client := notionapi.NewClient(notionapi.Token(cfg.Token), notionapi.WithHTTPClient(hc))
	return &NotionSink{cfg: cfg, client: client, log: log, now: time.Now}, nil
}

// hostRewriter points every request at base while keeping the API path.
type hostRewriter struct {
	base *url.URL
	next http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = h.base.Scheme
	out.URL.Host = h.base.Host
	out.Host = h.base.Host
	return h.next.RoundTrip(out)
}

// Prepare finds the database by name, creating it when the search returns
// nothing.
func (n *NotionSink) Prepare(ctx context.Context) (Destination, error) {
	id, err := n.findDatabase(ctx)
	if err != nil {
		return Destination{}, fmt.Errorf("failed to search database: %w", err)
	}
	if id != "" {
		n.log.Info("Found Notion database", logger.String("database_id", id))
		return Destination{ID: id, Name: n.cfg.DatabaseName}, nil
	}

	id, err = n.createDatabase(ctx)
	if err != nil {
		return Destination{}, fmt.Errorf("failed to create database: %w", err)
	}
	n.log.Info("Created Notion database", logger.String("database_id", id))
	return Destination{ID: id, Name: n.cfg.DatabaseName}, nil
}

// findDatabase prefers a result whose title equals the database name and
// otherwise takes the first database returned.
func (n *NotionSink) findDatabase(ctx context.Context) (string, error) {
	resp, err := n.client.Search.Do(ctx, &notionapi.SearchRequest{
		Query:  n.cfg.DatabaseName,
		Filter: notionapi.SearchFilter{Property: "object", Value: "database"},
	})
	if err != nil {
		return "", err
	}

	first := ""
	for _, obj := range resp.Results {
		db, ok := obj.(*notionapi.Database)
		if !ok {
			continue
		}
		if first == "" {
			first = string(db.ID)
		}
		if plainText(db.Title) == n.cfg.DatabaseName {
			return string(db.ID), nil
		}
	}
	return first, nil
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

var optionColors = []notionapi.Color{
	notionapi.ColorBlue,
	notionapi.ColorPurple,
	notionapi.ColorPink,
	notionapi.ColorOrange,
	notionapi.ColorYellow,
	notionapi.ColorGreen,
	notionapi.ColorRed,
	notionapi.ColorBrown,
	notionapi.ColorGray,
}

func selectConfig(options []notionapi.Option) notionapi.SelectPropertyConfig {
	return notionapi.SelectPropertyConfig{
		Type:   notionapi.PropertyConfigTypeSelect,
		Select: notionapi.Select{Options: options},
	}
}

func sourceOptions(names []string) []notionapi.Option {
	options := make([]notionapi.Option, 0, len(names))
	for i, name := range names {
		options = append(options, notionapi.Option{
			Name:  name,
			Color: optionColors[i%len(optionColors)],
		})
	}
	return options
}

func (n *NotionSink) createDatabase(ctx context.Context) (string, error) {
	db, err := n.client.Database.Create(ctx, &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(n.cfg.ParentPageID),
		},
		Title: []notionapi.RichText{text(n.cfg.DatabaseName)},
		Properties: notionapi.PropertyConfigs{
			"Titre":  notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
			"Source": selectConfig(sourceOptions(n.cfg.SourceNames)),
			"Catégorie": selectConfig([]notionapi.Option{
				{Name: "Maison d'édition", Color: notionapi.ColorBlue},
				{Name: "Podcast", Color: notionapi.ColorOrange},
				{Name: "Établissement", Color: notionapi.ColorGreen},
			}),
			"Type": selectConfig([]notionapi.Option{
				{Name: string(record.TypePublisher), Color: notionapi.ColorBlue},
				{Name: string(record.TypePodcast), Color: notionapi.ColorOrange},
				{Name: string(record.TypeInstitution), Color: notionapi.ColorGreen},
			}),
			"Lien":        notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
			"Description": notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
			"Date":        notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate},
			"Ajouté le":   notionapi.CreatedTimePropertyConfig{Type: notionapi.PropertyConfigCreatedTime},
		},
	})
	if err != nil {
		return "", err
	}
	if db.ID == "" {
		return "", errors.New("notion returned no database id")
	}
	return string(db.ID), nil
}

// Publish creates one page per record. A rejected record is logged and
// counted; the rest are still attempted.
func (n *NotionSink) Publish(ctx context.Context, dest Destination, records []record.Record) Result {
	var res Result
	for _, r := range records {
		if _, err := n.client.Page.Create(ctx, n.pageRequest(dest.ID, r)); err != nil {
			res.ErrorCount++
			n.log.Warn("Failed to create Notion page",
				logger.String("source", r.Source),
				logger.String("title", record.Truncate(r.Title, 60)),
				logger.Error(err),
			)
			continue
		}
		res.SuccessCount++
		n.log.Debug("Created Notion page",
			logger.String("source", r.Source),
			logger.String("title", record.Truncate(r.Title, 60)),
		)
	}

	n.log.Info("Published to Notion",
		logger.Int("success", res.SuccessCount),
		logger.Int("errors", res.ErrorCount),
	)
	return res
}

func (n *NotionSink) pageRequest(databaseID string, r record.Record) *notionapi.PageCreateRequest {
	date := n.now().UTC()
	if r.Date != nil {
		date = r.Date.UTC()
	}
	day := notionapi.Date(time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC))

	description := []notionapi.RichText{}
	if r.Description != "" {
		description = append(description, text(record.Truncate(r.Description, notionTextLimit)))
	}

	props := notionapi.Properties{
		"Titre": notionapi.TitleProperty{
			Title: []notionapi.RichText{text(record.Truncate(r.Title, notionTextLimit))},
		},
		"Source":      notionapi.SelectProperty{Select: notionapi.Option{Name: r.Source}},
		"Type":        notionapi.SelectProperty{Select: notionapi.Option{Name: string(r.Type)}},
		"Lien":        notionapi.URLProperty{URL: r.URL},
		"Description": notionapi.RichTextProperty{RichText: description},
		"Date":        notionapi.DateProperty{Date: &notionapi.DateObject{Start: &day}},
	}
	if r.Category != "" {
		props["Catégorie"] = notionapi.SelectProperty{Select: notionapi.Option{Name: r.Category}}
	}

	emoji := notionapi.Emoji(CategoryEmoji(r.Category))
	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Icon:       &notionapi.Icon{Type: "emoji", Emoji: &emoji},
		Properties: props,
	}
}

// CategoryEmoji returns the page icon for a category.
func CategoryEmoji(category string) string {
	switch category {
	case "Maison d'édition":
		return "📕"
	case "Podcast":
		return "🎙️"
	case "Établissement":
		return "🏛️"
	}
	return "📄"
}

func text(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}
}
