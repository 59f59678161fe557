package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/schema"
	"github.com/sells-group/locus/internal/state"
)

// DateLayout formats current_date.
const DateLayout = "2006-01-02"

// Input is an analysis request as received. Message is free text used to
// fill fields the structured values leave empty.
type Input struct {
	TargetLocation string `json:"target_location"`
	BusinessType   string `json:"business_type"`
	Message        string `json:"message,omitempty"`
	MapsAPIKey     string `json:"maps_api_key,omitempty"`
}

// requestPatterns are tried in order. A match only counts when the
// business capture looks like a business type (see plausibleBusiness);
// anything else goes to the reasoner.
var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:open|opening|start|starting|launch|launching)\s+(?:a\s+|an\s+|my\s+)?(.+?)\s+(?:in|at|near|around)\s+(.+)`),
	regexp.MustCompile(`(?i)\b(?:want|need)\s+(?:a|an)\s+(.+?)\s+(?:in|at|near|around)\s+(.+)`),
	regexp.MustCompile(`(?i)^(?:analy[sz]e\s+)?(?:a\s+|an\s+)?(.+?)\s+(?:in|at|near|around)\s+(.+)$`),
}

// maxBusinessWords bounds a pattern-extracted business type.
const maxBusinessWords = 4

// nonBusinessWords mark a capture as part of a question or a sentence
// rather than a business type.
var nonBusinessWords = map[string]bool{
	"i": true, "i'm": true, "im": true, "we": true, "we're": true, "me": true, "us": true,
	"is": true, "are": true, "should": true, "can": true, "could": true, "would": true, "will": true,
	"what": true, "where": true, "which": true, "how": true, "why": true,
	"looking": true, "find": true, "help": true, "tell": true, "want": true, "need": true,
	"best": true, "spot": true, "place": true, "location": true, "area": true,
	"viable": true, "good": true, "idea": true, "worth": true, "for": true,
}

var intakeSchema = &schema.Descriptor{
	Name:        "AnalysisRequest",
	Description: "The location and business type a user wants analyzed. Use empty strings for anything not stated.",
	Fields: []schema.Field{
		schema.String(state.KeyTargetLocation, "geographic area, such as a neighborhood and city"),
		schema.String(state.KeyBusinessType, "kind of business, such as coffee shop or gym"),
	},
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithIntakeReasoner enables model-based extraction when patterns fail.
func WithIntakeReasoner(r reasoner.Client) IntakeOption {
	return func(in *Intake) { in.reasoner = r }
}

// WithIntakeClock overrides the clock used for current_date.
func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(in *Intake) { in.now = now }
}

// WithDefaultMapsKey sets the maps credential used when a request has none.
func WithDefaultMapsKey(key string) IntakeOption {
	return func(in *Intake) { in.mapsKey = key }
}

// Intake validates requests into run parameters.
type Intake struct {
	reasoner reasoner.Client
	now      func() time.Time
	mapsKey  string
}

// NewIntake creates an Intake.
func NewIntake(opts ...IntakeOption) *Intake {
	in := &Intake{now: time.Now}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Parse returns run parameters, or a *fault.ClarificationError naming the
// fields still missing. Valid structured input is returned unchanged apart
// from trimming, so parsing it twice gives the same result.
func (in *Intake) Parse(ctx context.Context, req Input) (*Params, error) {
	p := &Params{
		TargetLocation: clean(req.TargetLocation),
		BusinessType:   clean(req.BusinessType),
		MapsAPIKey:     strings.TrimSpace(req.MapsAPIKey),
		CurrentDate:    in.now().Format(DateLayout),
	}
	if p.MapsAPIKey == "" {
		p.MapsAPIKey = in.mapsKey
	}

	msg := strings.TrimSpace(req.Message)
	if (p.TargetLocation == "" || p.BusinessType == "") && msg != "" {
		business, location := matchRequest(msg)
		if business == "" && in.reasoner != nil {
			var err error
			business, location, err = in.extract(ctx, msg)
			if err != nil {
				return nil, err
			}
		}
		if p.BusinessType == "" {
			p.BusinessType = business
		}
		if p.TargetLocation == "" {
			p.TargetLocation = location
		}
	}

	var missing []string
	if p.TargetLocation == "" {
		missing = append(missing, state.KeyTargetLocation)
	}
	if p.BusinessType == "" {
		missing = append(missing, state.KeyBusinessType)
	}
	if len(missing) > 0 {
		return nil, fault.NeedsClarification(missing...)
	}
	return p, nil
}

func matchRequest(msg string) (business, location string) {
	for _, re := range requestPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			b, l := clean(m[1]), clean(m[2])
			if l != "" && plausibleBusiness(b) {
				return b, l
			}
		}
	}
	return "", ""
}

func plausibleBusiness(b string) bool {
	words := strings.Fields(strings.ToLower(b))
	if len(words) == 0 || len(words) > maxBusinessWords {
		return false
	}
	for _, w := range words {
		if nonBusinessWords[strings.Trim(w, ",")] {
			return false
		}
	}
	return true
}

// extract asks the reasoner for the two fields. Failures other than
// cancellation fall through to a clarification request.
func (in *Intake) extract(ctx context.Context, msg string) (business, location string, err error) {
	resp, err := in.reasoner.Generate(ctx, reasoner.Request{
		Stage:  "intake",
		Tier:   reasoner.TierFast,
		Prompt: "Extract the analysis request from this message:\n\n" + msg,
		Schema: intakeSchema,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", "", err
		}
		zap.L().Warn("pipeline: intake extraction failed", zap.Error(err))
		return "", "", nil
	}
	b, _ := resp.Value[state.KeyBusinessType].(string)
	l, _ := resp.Value[state.KeyTargetLocation].(string)
	return clean(b), clean(l), nil
}

// clean trims whitespace, surrounding quotes and trailing punctuation.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, ".!?;:")
	return strings.TrimSpace(s)
}
