// Package connection implements the page that edits a service's connection
// configuration.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/notify"
)

const (
	msgFetchError  = "Error while fetching service details!"
	msgUpdateError = "Error while updating service config"
)

// MetadataCategory is the service category of the catalog's own metadata
// services. Its built-in service cannot test connections.
const (
	MetadataCategory = "metadataServices"
	BuiltinService   = "OpenMetadata"
)

var settingsRoutes = map[string]string{
	"databaseServices":  "databases",
	"messagingServices": "messaging",
	"dashboardServices": "dashboards",
	"pipelineServices":  "pipelines",
	"mlmodelServices":   "mlModels",
	"metadataServices":  "metadata",
	"storageServices":   "storages",
}

// SettingsPath is the settings page listing services of category.
func SettingsPath(category string) string {
	route, ok := settingsRoutes[category]
	if !ok {
		route = category
	}
	return "/settings/services/" + route
}

// ServicePath is the detail page of one service.
func ServicePath(category, fqn string) string {
	return "/service/" + category + "/" + fqn
}

// LogoPath is the image shown next to a service of serviceType.
func LogoPath(serviceType string) string {
	if serviceType == "" {
		return "/images/services/default.svg"
	}
	return "/images/services/" + strings.ToLower(serviceType) + ".svg"
}

// MissingMessage is the placeholder text for an unknown service.
func MissingMessage(category, fqn string) string {
	return fmt.Sprintf("%s instance for %s not found", category, fqn)
}

var upper = cases.Upper(language.English)

// StartCase splits s on case changes, digit boundaries and separators and
// upper-cases the first letter of every word, leaving the rest as is:
// "databaseServices" becomes "Database Services", "HTTPServer" becomes
// "HTTP Server".
func StartCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, upper.String(string(cur[:1]))+string(cur[1:]))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
			continue
		case i > 0 && unicode.IsUpper(r):
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		case i > 0 && unicode.IsDigit(r) != unicode.IsDigit(runes[i-1]) && !unicode.IsSpace(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, " ")
}

// Gateway is the part of the catalog API the page needs.
type Gateway interface {
	ServiceByFQN(ctx context.Context, category, fqn string, fields []string) (*catalog.Service, error)
	UpdateService(ctx context.Context, category string, svc *catalog.Service) (*catalog.Service, error)
}

// View is what the page renders.
type View struct {
	Category               string               `json:"category"`
	FQN                    string               `json:"fqn"`
	Loading                bool                 `json:"loading"`
	Missing                bool                 `json:"missing"`
	ErrorMessage           string               `json:"errorMessage,omitempty"`
	Heading                string               `json:"heading,omitempty"`
	Breadcrumb             []catalog.Breadcrumb `json:"breadcrumb,omitempty"`
	Service                *catalog.Service     `json:"service,omitempty"`
	TestConnectionDisabled bool                 `json:"testConnectionDisabled"`
}

// Page loads one service and submits connection updates for it. It is
// safe for concurrent use.
type Page struct {
	gw       Gateway
	notifier notify.Notifier
	logger   *slog.Logger

	mu   sync.RWMutex
	view View
}

// New creates a Page.
func New(gw Gateway, notifier notify.Notifier, logger *slog.Logger) *Page {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{
		gw:       gw,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "connection")),
		view:     View{Loading: true},
	}
}

// View returns the current page state.
func (p *Page) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	if v.Service != nil {
		svc := cloneService(*v.Service)
		v.Service = &svc
	}
	return v
}

// Load fetches the service category/fqn with its owner. A missing service
// shows the placeholder; other failures toast.
func (p *Page) Load(ctx context.Context, category, fqn string) error {
	p.mu.Lock()
	p.view = View{Category: category, FQN: fqn, Loading: true}
	p.mu.Unlock()

	svc, err := p.gw.ServiceByFQN(ctx, category, fqn, []string{"owner"})
	if err == nil && svc == nil {
		err = catalog.ErrUnexpectedResponse
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Loading = false
	if err != nil {
		p.logger.Warn("load service", slog.String("category", category), slog.String("fqn", fqn), slog.Any("err", err))
		if errors.Is(err, catalog.ErrNotFound) {
			p.view.Missing = true
			p.view.ErrorMessage = MissingMessage(category, fqn)
		} else {
			p.notifier.Error(err, msgFetchError)
		}
		return fmt.Errorf("load service %s: %w", fqn, err)
	}

	p.view.Service = svc
	p.view.Heading = fmt.Sprintf("Edit %s Service Connection", fqn)
	p.view.TestConnectionDisabled = category == MetadataCategory && fqn == BuiltinService
	name := svc.DisplayName
	if name == "" {
		name = svc.Name
	}
	p.view.Breadcrumb = []catalog.Breadcrumb{
		{Name: StartCase(category), URL: SettingsPath(category)},
		{Name: name, URL: ServicePath(category, fqn), ImageSrc: LogoPath(svc.ServiceType)},
		{Name: "Edit Connection", Active: true},
	}
	return nil
}

// UpdateConfig replaces the connection config of the loaded service. When
// the server's response carries no owner the previous one is kept.
func (p *Page) UpdateConfig(ctx context.Context, cfg map[string]any) error {
	p.mu.RLock()
	category := p.view.Category
	cur := p.view.Service
	p.mu.RUnlock()
	if cur == nil {
		return fmt.Errorf("update config: %w", catalog.ErrNotFound)
	}

	req := &catalog.Service{
		Name:        cur.Name,
		ServiceType: cur.ServiceType,
		Description: cur.Description,
		Owner:       cur.Owner,
		Connection:  &catalog.Connection{Config: maps.Clone(cfg)},
	}
	res, err := p.gw.UpdateService(ctx, category, req)
	if err == nil && res == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		p.notifier.Error(err, msgUpdateError)
		return fmt.Errorf("update service %s: %w", cur.Name, err)
	}

	updated := *res
	if updated.Owner == nil {
		updated.Owner = cur.Owner
	}
	p.mu.Lock()
	if p.view.Service != nil && p.view.Service.Name == cur.Name {
		p.view.Service = &updated
	}
	p.mu.Unlock()
	return nil
}

func cloneService(s catalog.Service) catalog.Service {
	if s.Owner != nil {
		o := *s.Owner
		s.Owner = &o
	}
	if s.Connection != nil {
		s.Connection = &catalog.Connection{Config: maps.Clone(s.Connection.Config)}
	}
	return s
}
