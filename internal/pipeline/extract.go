package pipeline

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/llmtool"
	t "ticketforge/internal/types"
)

var promptExtract = llmtool.StructuredPromptSpec{
	Purpose:    "Extract the structured requirements of a software project from a free-text brief.",
	Background: "Briefs come from product owners and clients. They may be informal, partial or written in Spanish.",
	OutputFields: []llmtool.PromptField{
		{Name: "projectName", Type: "string", Required: true, Description: "Short product name; invent a descriptive one if none is given."},
		{Name: "summary", Type: "string", Required: true, Description: "Two to four sentences describing what is being built and for whom."},
		{Name: "goals", Type: "[]string", Required: true, Description: "Business or user outcomes."},
		{Name: "constraints", Type: "[]string", Required: true, Description: "Budget, deadlines, team, compliance, platform or scale limits stated in the brief."},
		{Name: "features", Type: "[]string", Required: true, Description: "One entry per distinct capability the software must offer."},
		{Name: "stakeholders", Type: "[]string", Required: true, Description: "People or groups who use, fund or operate the software."},
		{Name: "techHints", Type: "[]string", Required: false, Description: "Technologies the brief names or clearly implies."},
		{Name: "scope", Type: "string", Required: false, Description: "Scale or scope statement, e.g. expected users or regions."},
	},
	Rules: []string{
		"Only state what the brief says or directly implies; leave lists empty rather than guessing.",
		"Keep each list entry to one short sentence.",
		"Features must be concrete capabilities, not goals.",
	},
	OutputFormat: "A single JSON object with exactly the fields above. No markdown, no commentary.",
	Language:     "English, even when the brief is not.",
}

// Extractor turns raw brief text into Requirements with one model call.
type Extractor struct {
	LLM     llmclient.LLMClient
	Pricing cost.Pricing
}

// Run returns the extracted requirements and the cost of the call. A
// malformed response yields *types.ParseError; a non-software brief yields
// *types.ValidationError.
func (e *Extractor) Run(ctx context.Context, text string) (t.Requirements, t.Cost, error) {
	resp, c, err := complete(ctx, e.LLM, e.Pricing, "extract", llmclient.Request{
		System:      promptExtract.MustRender(),
		User:        "Extract requirements from this document:\n\n" + text,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return t.Requirements{}, t.Cost{}, err
	}
	var req t.Requirements
	if err := llmtool.Decode(resp.Text, &req, t.RequirementsKeys...); err != nil {
		return t.Requirements{}, c, &t.ParseError{Step: "extract", Err: err}
	}
	req.Normalize()
	if err := CheckSoftwareProject(req, text); err != nil {
		return t.Requirements{}, c, err
	}
	return req, c, nil
}

var softwareTerms = []string{
	"app", "application", "system", "platform", "web", "website", "site", "api",
	"database", "user", "login", "authentication", "frontend", "backend",
	"interface", "dashboard", "mobile", "software", "code", "develop", "developer", "development", "page",
	"form", "server", "cloud", "service", "integration", "module",
	"aplicación", "aplicacion", "sistema", "plataforma", "sitio", "base de datos",
	"usuario", "autenticación", "autenticacion", "interfaz", "panel", "móvil",
	"movil", "desarrollo", "desarrollar", "página", "pagina", "formulario",
	"servidor", "nube", "servicio", "integración", "integracion", "módulo", "modulo",
}

var commerceTerms = []string{
	"buy", "sell", "rent", "hire", "investment", "real estate", "property",
	"comprar", "vender", "alquilar", "contratar", "inversión", "inversion",
	"bienes raíces", "bienes raices", "propiedad", "inmueble",
}

// containsAny matches single-word terms against whole words (plural "s"
// tolerated, so "apps" matches but "apartment" does not) and multi-word
// terms as substrings. text must be lowercase.
func containsAny(text string, terms []string) bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
		words[strings.TrimSuffix(w, "s")] = true
	}
	for _, term := range terms {
		if strings.Contains(term, " ") {
			if strings.Contains(text, term) {
				return true
			}
			continue
		}
		if words[term] {
			return true
		}
	}
	return false
}

// CheckSoftwareProject rejects requirements that do not describe software.
// All failing reasons are reported together.
func CheckSoftwareProject(req t.Requirements, rawText string) error {
	var reasons []string
	if len(req.Features) == 0 {
		reasons = append(reasons, "no software features were identified")
	}
	if len(req.Goals) == 0 {
		reasons = append(reasons, "no project goals were identified")
	}
	hasSoftware := containsAny(req.Text(), softwareTerms)
	if !hasSoftware {
		reasons = append(reasons, "the content does not mention software, applications or technical systems")
	}
	raw := strings.ToLower(rawText)
	if utf8.RuneCountInString(rawText) < 200 && containsAny(raw, commerceTerms) && !containsAny(raw, softwareTerms) {
		reasons = append(reasons, "the text looks like a commercial or real-estate request, not a software project")
	}
	if len(reasons) == 0 {
		return nil
	}
	return &t.ValidationError{Reasons: reasons}
}
