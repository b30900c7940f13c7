package types

import "strings"

// Display es el parámetro display de OIDC.
type Display string

const (
	DisplayUnspecified Display = ""
	DisplayPage        Display = "page"
	DisplayPopup       Display = "popup"
	DisplayTouch       Display = "touch"
	DisplayWap         Display = "wap"
)

func (d Display) IsValid() bool {
	switch d {
	case DisplayUnspecified, DisplayPage, DisplayPopup, DisplayTouch, DisplayWap:
		return true
	default:
		return false
	}
}

// Prompt es un valor individual del parámetro prompt.
type Prompt string

const (
	PromptNone          Prompt = "none"
	PromptLogin         Prompt = "login"
	PromptConsent       Prompt = "consent"
	PromptSelectAccount Prompt = "select_account"
	PromptCreate        Prompt = "create"
)

func (p Prompt) IsValid() bool {
	switch p {
	case PromptNone, PromptLogin, PromptConsent, PromptSelectAccount, PromptCreate:
		return true
	default:
		return false
	}
}

// Prompts es el conjunto de valores del parámetro prompt (space-delimited).
type Prompts []Prompt

// ParsePrompts separa el valor crudo del parámetro prompt.
func ParsePrompts(raw string) Prompts {
	fields := strings.Fields(raw)
	out := make(Prompts, 0, len(fields))
	for _, f := range fields {
		out = append(out, Prompt(f))
	}
	return out
}

// HasNone reporta si prompt incluye "none".
func (ps Prompts) HasNone() bool {
	for _, p := range ps {
		if p == PromptNone {
			return true
		}
	}
	return false
}

// Strings devuelve los prompts como slice de string.
func (ps Prompts) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// AllValid reporta si todos los valores son válidos.
func (ps Prompts) AllValid() bool {
	for _, p := range ps {
		if !p.IsValid() {
			return false
		}
	}
	return true
}
