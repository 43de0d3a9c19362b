package pipeline

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/tester"
	"ticketforge/internal/types"
)

const clinicBrief = `Build a web platform for a dental clinic. Patients book appointments online,
receive reminders by SMS and can see their treatment history after login.`

func clinicRequirements() types.Requirements {
	return types.Requirements{
		ProjectName:  "Clinic Booking",
		Summary:      "A web platform where patients book dental appointments.",
		Goals:        []string{"Reduce phone bookings"},
		Constraints:  []string{},
		Features:     []string{"Online booking", "SMS reminders", "Treatment history"},
		Stakeholders: []string{"Patients", "Clinic staff"},
	}
}

func TestExtractor_Run(t *testing.T) {
	llm := llmclient.NewScriptedClient(fenced(mustJSON(clinicRequirements())))
	ex := &Extractor{LLM: llm, Pricing: cost.Default}

	req, c, err := ex.Run(context.Background(), clinicBrief)
	tester.NoErr(t, err)
	tester.Eq(t, req.ProjectName, "Clinic Booking")
	tester.Eq(t, len(req.Features), 3)
	tester.Eq(t, req.Constraints, []string{})
	tester.True(t, c.TokensIn > 0 && c.USD > 0, "cost must be priced")

	calls := llm.Calls()
	tester.Eq(t, len(calls), 1)
	tester.True(t, strings.Contains(calls[0].User, "dental clinic"))
	tester.True(t, calls[0].JSON)
}

func TestExtractor_MissingKeysIsParseError(t *testing.T) {
	llm := llmclient.NewScriptedClient(`{"projectName":"x","summary":"y"}`)
	_, _, err := (&Extractor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), clinicBrief)
	pe := tester.ErrAs[*types.ParseError](t, err)
	tester.Eq(t, pe.Step, "extract")
	tester.True(t, strings.Contains(pe.Error(), "goals"))
}

func TestExtractor_NotJSONIsParseError(t *testing.T) {
	llm := llmclient.NewScriptedClient("I cannot help with that.")
	_, _, err := (&Extractor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), clinicBrief)
	tester.ErrAs[*types.ParseError](t, err)
}

func TestExtractor_NonSoftwareIsRejected(t *testing.T) {
	req := types.Requirements{
		ProjectName:  "Flat",
		Summary:      "Looking to rent a flat near the beach.",
		Goals:        []string{},
		Constraints:  []string{},
		Features:     []string{},
		Stakeholders: []string{"Family"},
	}
	llm := llmclient.NewScriptedClient(mustJSON(req))
	_, _, err := (&Extractor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), "I want to rent a flat near the beach")
	ve := tester.ErrAs[*types.ValidationError](t, err)
	tester.Eq(t, len(ve.Reasons), 4)
}

func TestCheckSoftwareProject_WholeWords(t *testing.T) {
	req := types.Requirements{
		ProjectName: "Apartment",
		Summary:     "An apartment in the centre",
		Goals:       []string{"Move in"},
		Features:    []string{"Two bedrooms"},
	}
	err := CheckSoftwareProject(req, strings.Repeat("an apartment in the centre ", 10))
	ve := tester.ErrAs[*types.ValidationError](t, err)
	tester.Eq(t, len(ve.Reasons), 1)

	req.Features = []string{"Mobile apps for tenants"}
	tester.NoErr(t, CheckSoftwareProject(req, "tenant apps"))
}

func TestCheckSoftwareProject_Spanish(t *testing.T) {
	req := types.Requirements{
		ProjectName: "Reservas",
		Summary:     "Una aplicación para reservar canchas",
		Goals:       []string{"Reservas en línea"},
		Features:    []string{"Panel de administración"},
	}
	tester.NoErr(t, CheckSoftwareProject(req, "Una aplicación para reservar canchas"))
}

func TestCheckSoftwareProject_ShortBriefCountsCharacters(t *testing.T) {
	req := types.Requirements{
		ProjectName: "Inmueble",
		Summary:     "A platform to track a property purchase",
		Goals:       []string{"Buy a flat"},
		Features:    []string{"Listing"},
	}
	brief := strings.Repeat("Comprar inmueble en Málaga, inversión pequeña. ", 4)
	tester.True(t, len(brief) >= 200, len(brief))
	tester.True(t, utf8.RuneCountInString(brief) < 200, utf8.RuneCountInString(brief))

	ve := tester.ErrAs[*types.ValidationError](t, CheckSoftwareProject(req, brief))
	tester.Eq(t, ve.Reasons, []string{"the text looks like a commercial or real-estate request, not a software project"})
}
