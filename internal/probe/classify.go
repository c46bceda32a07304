package probe

import "encoding/json"

// AAD error codes that carry the existence signal. Everything else is noise
// as far as detection goes.
const (
	// codeAppNotFound: the application was not found in the directory. The
	// request is rejected before the secret is ever looked at.
	codeAppNotFound = 700016
	// codeInvalidSecret: the application exists but the provided client
	// secret is wrong, which is exactly what the placeholder secret provokes.
	codeInvalidSecret = 7000215
)

// tokenErrorBody is the JSON error shape returned by the token endpoint.
type tokenErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
}

// Detail carries the fields extracted from a response body alongside the
// classification.
type Detail struct {
	ErrorCodes  []int
	Description string
}

// Classify maps a raw token-endpoint response to an Outcome. The HTTP status
// is deliberately ignored: both signature codes come back as 4xx, so only the
// error_codes content is authoritative. Anything unparseable, any unknown
// code set, and any unexpected success all land on Indeterminate.
//
// When both signature codes co-occur, not-found wins: that rejection happens
// before secret validation, so it says nothing about the secret.
func Classify(resp *RawResponse) (Outcome, Detail) {
	var body tokenErrorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Indeterminate, Detail{}
	}

	detail := Detail{
		ErrorCodes:  body.ErrorCodes,
		Description: body.ErrorDescription,
	}

	if containsCode(body.ErrorCodes, codeAppNotFound) {
		return DoesNotExist, detail
	}
	if containsCode(body.ErrorCodes, codeInvalidSecret) {
		return Exists, detail
	}
	return Indeterminate, detail
}

func containsCode(codes []int, want int) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}
