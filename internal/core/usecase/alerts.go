package usecase

import (
	"fmt"
	"strings"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// Per-100g thresholds for users who declared the matching condition.
const (
	sugarHighThreshold  = 2.5
	sugarMedThreshold   = 1.5
	saltHighThreshold   = 0.5
	saltMedThreshold    = 0.3
	satFatHighThreshold = 1.0
	satFatMedThreshold  = 0.5
)

var allergenKeywords = map[string][]string{
	"nuts":   {"nut", "almond", "walnut", "peanut", "cashew", "pistachio", "hazelnut"},
	"dairy":  {"milk", "cheese", "butter", "yogurt", "cream", "whey", "casein"},
	"gluten": {"wheat", "barley", "rye", "gluten", "bread", "pasta"},
	"soy":    {"soy", "soya", "tofu", "soybean"},
	"eggs":   {"egg", "albumin", "mayonnaise"},
}

var (
	nonVegetarianIngredients = []string{"meat", "chicken", "fish", "pork", "beef", "gelatin", "rennet"}
	nonVeganIngredients      = []string{"milk", "cheese", "butter", "honey", "egg", "yogurt", "whey"}
	glutenIngredients        = []string{"wheat", "barley", "rye", "gluten"}
)

// AlertEngine derives personalized alerts from a completed analysis. Nutrient
// checks only fire on values actually present: a null nutrient produces no
// alert either way.
type AlertEngine struct{}

func NewAlertEngine() *AlertEngine {
	return &AlertEngine{}
}

func (e *AlertEngine) GenerateAlerts(profile domain.HealthProfile, analysis *domain.FinalAnalysis) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	if analysis == nil {
		return alerts
	}

	if profile.HasCondition("diabetes") {
		alerts = append(alerts, nutrientAlerts(
			analysis.Nutrition.Sugar, sugarHighThreshold, sugarMedThreshold, "sugar",
			"High sugar content (%.1fg) - not recommended for diabetics",
			"Moderate sugar content (%.1fg) - consume with caution",
		)...)
	}
	if profile.HasCondition("hypertension") {
		alerts = append(alerts, nutrientAlerts(
			analysis.Nutrition.Salt, saltHighThreshold, saltMedThreshold, "salt",
			"High salt content (%.1fg) - not recommended for hypertension",
			"Moderate salt content (%.1fg) - consume with caution",
		)...)
	}
	if profile.HasCondition("heart_disease") {
		alerts = append(alerts, nutrientAlerts(
			analysis.Nutrition.SaturatedFat, satFatHighThreshold, satFatMedThreshold, "fat",
			"High saturated fat (%.1fg) - not recommended for heart conditions",
			"Moderate saturated fat (%.1fg) - consume with caution",
		)...)
	}

	alerts = append(alerts, allergyAlerts(profile.Allergies, analysis.Ingredients)...)
	alerts = append(alerts, dietaryAlerts(profile.DietaryPreferences, analysis.Ingredients)...)
	return alerts
}

func nutrientAlerts(value *float64, high, medium float64, alertType, highMsg, mediumMsg string) []domain.Alert {
	if value == nil {
		return nil
	}
	switch {
	case *value > high:
		return []domain.Alert{{
			Level:   domain.AlertLevelHigh,
			Message: fmt.Sprintf(highMsg, *value),
			Type:    alertType,
		}}
	case *value > medium:
		return []domain.Alert{{
			Level:   domain.AlertLevelMedium,
			Message: fmt.Sprintf(mediumMsg, *value),
			Type:    alertType,
		}}
	}
	return nil
}

func allergyAlerts(allergies, ingredients []string) []domain.Alert {
	alerts := make([]domain.Alert, 0)

	for _, allergy := range allergies {
		keywords, ok := allergenKeywords[allergy]
		if !ok {
			keywords = []string{allergy}
		}

		// One alert per allergy type, however many ingredients match.
		if anyIngredientContains(ingredients, keywords) {
			alerts = append(alerts, domain.Alert{
				Level:   domain.AlertLevelHigh,
				Message: fmt.Sprintf("Contains %s - potential allergen detected, avoid this product", strings.ToUpper(allergy)),
				Type:    "allergy",
			})
		}
	}
	return alerts
}

func dietaryAlerts(preferences, ingredients []string) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	prefs := make(map[string]bool, len(preferences))
	for _, p := range preferences {
		prefs[p] = true
	}

	if (prefs["vegetarian"] || prefs["vegan"]) && anyIngredientContains(ingredients, nonVegetarianIngredients) {
		alerts = append(alerts, domain.Alert{
			Level:   domain.AlertLevelHigh,
			Message: "Contains non-vegetarian ingredients - not suitable for vegetarians",
			Type:    "general",
		})
	}
	if prefs["vegan"] && anyIngredientContains(ingredients, nonVeganIngredients) {
		alerts = append(alerts, domain.Alert{
			Level:   domain.AlertLevelHigh,
			Message: "Contains animal products - not suitable for vegans",
			Type:    "general",
		})
	}
	if prefs["gluten_free"] && anyIngredientContains(ingredients, glutenIngredients) {
		alerts = append(alerts, domain.Alert{
			Level:   domain.AlertLevelHigh,
			Message: "Contains gluten - not suitable for a gluten-free diet",
			Type:    "general",
		})
	}
	return alerts
}

func anyIngredientContains(ingredients, keywords []string) bool {
	for _, ingredient := range ingredients {
		lower := strings.ToLower(ingredient)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
	}
	return false
}
