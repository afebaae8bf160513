package models

// Intent is the classified purpose of a user turn.
type Intent string

const (
	IntentDashboardInsight      Intent = "DASHBOARD_INSIGHT"
	IntentProductFAQ            Intent = "PRODUCT_FAQ"
	IntentAccountHelp           Intent = "ACCOUNT_HELP"
	IntentAssistantCapabilities Intent = "ASSISTANT_CAPABILITIES"
	IntentOutOfScope            Intent = "OUT_OF_SCOPE"
	IntentOutOfPageScope        Intent = "OUT_OF_PAGE_SCOPE"
)

// Classification is the classifier verdict for a single turn.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// IsRefusal reports whether the intent is one of the two refusal categories.
func (c Classification) IsRefusal() bool {
	return c.Intent == IntentOutOfScope || c.Intent == IntentOutOfPageScope
}

// KnownIntents lists every intent the classifier may return.
var KnownIntents = []Intent{
	IntentDashboardInsight,
	IntentProductFAQ,
	IntentAccountHelp,
	IntentAssistantCapabilities,
	IntentOutOfScope,
	IntentOutOfPageScope,
}

// ParseIntent maps a raw classifier label onto a known intent. Anything
// unrecognized is treated as out of scope.
func ParseIntent(raw string) Intent {
	for _, intent := range KnownIntents {
		if string(intent) == raw {
			return intent
		}
	}
	return IntentOutOfScope
}
