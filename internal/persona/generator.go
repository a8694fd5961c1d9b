package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// roleTemplate pairs a stakeholder role with interview-relevant framing.
// The catalog generator fills in names from GitHub search results and falls
// back to the built-in names when the API is unreachable.
type roleTemplate struct {
	Role        string
	Goal        string
	Concerns    string
	Personality string
	Fallback    string
}

var defaultTemplates = []roleTemplate{
	{
		Role:        "Operations Manager",
		Goal:        "keep day-to-day operations running without disruption",
		Concerns:    "process changes, staff training time, rollout risk",
		Personality: "pragmatic and detail-oriented",
		Fallback:    "Maria Lopez",
	},
	{
		Role:        "Safety Officer",
		Goal:        "ensure the new system meets all safety and compliance requirements",
		Concerns:    "incident reporting, safety audits, regulatory compliance",
		Personality: "cautious and thorough",
		Fallback:    "David Kim",
	},
	{
		Role:        "Field Technician",
		Goal:        "get tools that actually work in the field",
		Concerns:    "usability, offline access, communication with dispatch",
		Personality: "direct and skeptical of management initiatives",
		Fallback:    "Priya Sharma",
	},
	{
		Role:        "Finance Lead",
		Goal:        "keep the project within budget",
		Concerns:    "licensing costs, training costs, return on investment",
		Personality: "analytical and reserved",
		Fallback:    "James Carter",
	},
	{
		Role:        "Team Lead",
		Goal:        "protect the team's productivity during the transition",
		Concerns:    "workload, leadership buy-in, teamwork across shifts",
		Personality: "supportive but protective of the team",
		Fallback:    "Ana Ferreira",
	},
}

// CatalogGenerator produces persona rosters. When a GitHub client is
// available it seeds persona names from user search so repeated sessions
// see varied casts; otherwise it uses the built-in fallback names.
type CatalogGenerator struct {
	client *github.Client
	logger *zap.Logger
}

// NewCatalogGenerator creates a generator. token may be empty, in which case
// an unauthenticated client is used (subject to stricter rate limits).
func NewCatalogGenerator(token string, logger *zap.Logger) *CatalogGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := oauth2.NewClient(context.Background(), nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &CatalogGenerator{
		client: github.NewClient(httpClient),
		logger: logger,
	}
}

// Generate returns a roster of size personas for the given project domain.
// size is clamped to the number of available role templates.
func (g *CatalogGenerator) Generate(ctx context.Context, domain string, size int) ([]Persona, error) {
	if size <= 0 {
		return nil, fmt.Errorf("roster size must be positive, got %d", size)
	}
	if size > len(defaultTemplates) {
		size = len(defaultTemplates)
	}

	names := g.searchNames(ctx, domain, size)

	roster := make([]Persona, 0, size)
	for i, tmpl := range defaultTemplates[:size] {
		name := tmpl.Fallback
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		roster = append(roster, Persona{
			Name:        name,
			Initials:    Initials(name),
			Role:        tmpl.Role,
			Goal:        tmpl.Goal,
			Concerns:    tmpl.Concerns,
			Personality: tmpl.Personality,
		})
	}
	return roster, nil
}

// searchNames queries GitHub user search for display names matching the
// domain. Failures are logged and produce an empty result so Generate can
// fall back to template names.
func (g *CatalogGenerator) searchNames(ctx context.Context, domain string, n int) []string {
	query := "type:user"
	if domain != "" {
		query = fmt.Sprintf("%s in:bio type:user", domain)
	}
	result, _, err := g.client.Search.Users(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: n},
	})
	if err != nil {
		g.logger.Warn("github user search failed, using template names", zap.Error(err))
		return nil
	}

	names := make([]string, 0, n)
	for _, u := range result.Users {
		name := u.GetName()
		if name == "" {
			name = prettifyLogin(u.GetLogin())
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// prettifyLogin turns a login like "maria-lopez42" into "Maria Lopez".
func prettifyLogin(login string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		case r == '-' || r == '_' || r == '.':
			return ' '
		default:
			return -1
		}
	}, login)

	parts := strings.Fields(cleaned)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}
