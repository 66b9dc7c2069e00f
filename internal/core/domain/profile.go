package domain

// HealthProfile describes the user context used for personalized alerts.
// Conditions: diabetes, hypertension, heart_disease.
// Preferences: vegetarian, vegan, gluten_free.
type HealthProfile struct {
	Age                int      `json:"age"`
	Conditions         []string `json:"conditions"`
	Allergies          []string `json:"allergies"`
	DietaryPreferences []string `json:"dietary_preferences"`
}

func (p HealthProfile) HasCondition(name string) bool {
	for _, c := range p.Conditions {
		if c == name {
			return true
		}
	}
	return false
}

type AlertLevel string

const (
	AlertLevelLow    AlertLevel = "low"
	AlertLevelMedium AlertLevel = "medium"
	AlertLevelHigh   AlertLevel = "high"
)

// Alert is a personalized warning derived from a completed analysis.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
	Type    string     `json:"alert_type"`
}
