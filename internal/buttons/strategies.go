package buttons

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/qiongbi/card-ledger/internal/store/schema"
)

// Strategy names accepted in button configuration.
const (
	StrategySimpleReplace = "simple_replace"
	StrategyQueryParam    = "query_param"
	StrategyTemplate      = "template"
)

// urlStrategy expands a template URL with values from an offer
type urlStrategy interface {
	GenerateURL(templateURL string, offer *schema.OfferLatest, cfg StrategyConfig) (string, error)
}

// strategyFor returns the strategy for a configured name, falling back to
// simple_replace for unknown names
func strategyFor(name string) urlStrategy {
	switch name {
	case StrategyQueryParam:
		return queryParamStrategy{}
	case StrategyTemplate:
		return templateStrategy{}
	default:
		return simpleReplaceStrategy{}
	}
}

// offerFields returns the offer values available to all strategies
func offerFields(offer *schema.OfferLatest) map[string]string {
	return map[string]string{
		"card_id":      offer.CardID,
		"product_name": offer.ProductName,
		"carrier":      offer.Carrier,
		"source":       offer.Source,
		"monthly_rent": offer.MonthlyRent,
		"general_flow": offer.GeneralFlow,
		"call_minutes": offer.CallMinutes,
		"age_range":    offer.AgeRange,
	}
}

// simpleReplaceStrategy substitutes {field} placeholders with URL-escaped
// offer values
type simpleReplaceStrategy struct{}

func (simpleReplaceStrategy) GenerateURL(templateURL string, offer *schema.OfferLatest, cfg StrategyConfig) (string, error) {
	replacements := offerFields(offer)
	for key, value := range cfg.CustomParams {
		replacements[strings.Trim(key, "{}")] = value
	}

	result := templateURL
	for field, value := range replacements {
		result = strings.ReplaceAll(result, "{"+field+"}", url.QueryEscape(value))
	}
	return result, nil
}

// queryParamStrategy appends offer values as query parameters
type queryParamStrategy struct{}

func (queryParamStrategy) GenerateURL(templateURL string, offer *schema.OfferLatest, cfg StrategyConfig) (string, error) {
	parsed, err := url.Parse(templateURL)
	if err != nil {
		return "", fmt.Errorf("invalid template url: %w", err)
	}

	query := parsed.Query()
	for field, value := range offerFields(offer) {
		query.Set(field, value)
	}
	for key, value := range cfg.ExtraParams {
		query.Set(key, value)
	}

	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// templateStrategy expands {{card.field}} and {{config.name}} expressions
type templateStrategy struct{}

var templateExprPattern = regexp.MustCompile(`\{\{(\w+)\.(\w+)\}\}`)

func (templateStrategy) GenerateURL(templateURL string, offer *schema.OfferLatest, cfg StrategyConfig) (string, error) {
	cardVars := offerFields(offer)
	cardVars["id"] = strconv.FormatInt(offer.ID, 10)
	if offer.RebateAmount != nil {
		cardVars["rebate_amount"] = offer.RebateAmount.String()
	} else {
		cardVars["rebate_amount"] = "0"
	}

	result := templateExprPattern.ReplaceAllStringFunc(templateURL, func(expr string) string {
		groups := templateExprPattern.FindStringSubmatch(expr)
		scope, field := groups[1], groups[2]
		switch scope {
		case "card":
			if value, ok := cardVars[field]; ok {
				return url.QueryEscape(value)
			}
		case "config":
			if value, ok := cfg.TemplateVars[field]; ok {
				return url.QueryEscape(value)
			}
		}
		// Unknown expressions pass through untouched
		return expr
	})

	return result, nil
}
