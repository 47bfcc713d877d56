// Package i18n localizes user-facing error messages.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message codes. They double as the stable "code" field of error bodies.
const (
	CodeInsufficientCredit   = "insufficient_credit"
	CodeGuestLimitReached    = "guest_limit_reached"
	CodeRewardLimitReached   = "reward_limit_reached"
	CodeExternalActionFailed = "external_action_failed"
	CodePermissionDenied     = "permission_denied"
	CodeGateBusy             = "gate_busy"
	CodeGateNotReady         = "gate_not_ready"
	CodeGateIdle             = "gate_idle"
	CodeAccountRequired      = "account_required"
	CodeInvalidAmount        = "invalid_amount"
	CodeUnsupportedPlan      = "unsupported_plan"
	CodeSamePlan             = "same_plan"
	CodeNotFound             = "not_found"
	CodeUnauthorized         = "unauthorized"
	CodeInvalidRequest       = "invalid_request"
	CodePayloadTooLarge      = "payload_too_large"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal_error"
)

var supported = []language.Tag{language.English, language.Afrikaans}

var matcher = language.NewMatcher(supported)

var entries = map[string][2]string{
	CodeInsufficientCredit:   {"You have run out of credits for today.", "Jy het vandag se krediete opgebruik."},
	CodeGuestLimitReached:    {"Daily guest limit reached. Sign in to keep going.", "Daaglikse gaslimiet bereik. Meld aan om voort te gaan."},
	CodeRewardLimitReached:   {"You have watched the maximum number of reward ads today.", "Jy het vandag reeds die maksimum aantal beloningsadvertensies gekyk."},
	CodeExternalActionFailed: {"The enhancement failed. No credit was used, please try again.", "Die verbetering het misluk. Geen krediet is gebruik nie, probeer asseblief weer."},
	CodePermissionDenied:     {"You do not have permission to do that.", "Jy het nie toestemming om dit te doen nie."},
	CodeGateBusy:             {"Another action is already in progress.", "'n Ander aksie is reeds besig."},
	CodeGateNotReady:         {"Please wait for the ad to finish.", "Wag asseblief totdat die advertensie klaar is."},
	CodeGateIdle:             {"There is no ad waiting to be completed.", "Daar is geen advertensie wat voltooi moet word nie."},
	CodeAccountRequired:      {"Sign in to watch ads for credits.", "Meld aan om advertensies vir krediete te kyk."},
	CodeInvalidAmount:        {"The amount must be a positive number.", "Die bedrag moet 'n positiewe getal wees."},
	CodeUnsupportedPlan:      {"That plan does not exist.", "Daardie plan bestaan nie."},
	CodeSamePlan:             {"You are already on this plan.", "Jy is reeds op hierdie plan."},
	CodeNotFound:             {"Not found.", "Nie gevind nie."},
	CodeUnauthorized:         {"Authentication required.", "Verifikasie word vereis."},
	CodeInvalidRequest:       {"The request is invalid.", "Die versoek is ongeldig."},
	CodePayloadTooLarge:      {"The file is too large. The limit is 5MB.", "Die lêer is te groot. Die limiet is 5MB."},
	CodeRateLimited:          {"Too many requests. Slow down a little.", "Te veel versoeke. Stadiger asseblief."},
	CodeInternal:             {"Something went wrong.", "Iets het verkeerd geloop."},
}

var cat = build()

func build() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for code, msgs := range entries {
		_ = b.SetString(language.English, code, msgs[0])
		_ = b.SetString(language.Afrikaans, code, msgs[1])
	}
	return b
}

// Match picks the best supported language for an Accept-Language style
// value. Unknown or empty input yields English.
func Match(accept string) language.Tag {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Message returns the localized text for code. Unknown codes come back as-is.
func Message(tag language.Tag, code string) string {
	p := message.NewPrinter(tag, message.Catalog(cat))
	return p.Sprintf(code)
}

// Supported lists the languages with a full message set.
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}
