package oauth

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// RedirectResponse es el resultado listo para transporte de una decisión de
// autorización: un header Location para los modes query/fragment, o un
// documento HTML auto-enviado para form_post.
type RedirectResponse struct {
	Location string
	HTMLBody string
	FormPost bool
}

// BuildRedirect pliega los parámetros del resultado en el redirect
// verificado usando el response_mode negociado.
func BuildRedirect(target string, mode types.ResponseMode, params map[string]string) (*RedirectResponse, error) {
	base, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("oauth: invalid redirect target: %w", err)
	}

	switch mode {
	case types.ResponseModeFragment:
		base.Fragment = ""
		return &RedirectResponse{Location: base.String() + "#" + encodeParams(params)}, nil
	case types.ResponseModeFormPost:
		return &RedirectResponse{FormPost: true, HTMLBody: formPostDocument(target, params)}, nil
	default:
		q := base.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		base.RawQuery = q.Encode()
		return &RedirectResponse{Location: base.String()}, nil
	}
}

// BuildErrorRedirect renderiza un error redirigible hacia su destino verificado.
func BuildErrorRedirect(e *types.RedirectableError) (*RedirectResponse, error) {
	params := map[string]string{
		"error":             string(e.Code),
		"error_description": e.Description,
	}
	if e.State != "" {
		params["state"] = e.State
	}
	return BuildRedirect(e.RedirectURI, e.ResponseMode, params)
}

func encodeParams(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}

// formPostDocument renderiza la respuesta form_post: un formulario POST que
// se auto-envía hacia el redirect_uri.
func formPostDocument(target string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Submit This Form</title></head>")
	b.WriteString(`<body onload="javascript:document.forms[0].submit()">`)
	fmt.Fprintf(&b, `<form method="post" action=%q>`, target)
	for _, k := range keys {
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s"/>`, html.EscapeString(k), html.EscapeString(params[k]))
	}
	b.WriteString("</form></body></html>")
	return b.String()
}
