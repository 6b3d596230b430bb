package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rhuss/tutogate/pkg/transport"
)

// Kind classifies why a gate denied a request.
type Kind int

const (
	KindNoCredential Kind = iota + 1
	KindMalformedToken
	KindInvalidSignature
	KindExpiredToken
	KindIdentityNotFound
	KindRoleMismatch
	KindResourceNotFound
	KindOwnershipMismatch
	KindLookupFailure

	// KindCallerOrderingDefect means a gate that reads the bound identity ran
	// before Authenticate.
	KindCallerOrderingDefect

	KindRateLimited
)

var kindNames = map[Kind]string{
	KindNoCredential:         "no_credential",
	KindMalformedToken:       "malformed_token",
	KindInvalidSignature:     "invalid_signature",
	KindExpiredToken:         "expired_token",
	KindIdentityNotFound:     "identity_not_found",
	KindRoleMismatch:         "role_mismatch",
	KindResourceNotFound:     "resource_not_found",
	KindOwnershipMismatch:    "ownership_mismatch",
	KindLookupFailure:        "lookup_failure",
	KindCallerOrderingDefect: "caller_ordering_defect",
	KindRateLimited:          "rate_limited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Client-facing denial messages.
const (
	MsgAuthenticationRequired = "authentication required"
	MsgInvalidToken           = "invalid or expired token"
	MsgUserNotFound           = "user not found"
	MsgAccessNotAuthorized    = "access not authorized"
	MsgResourceNotFound       = "resource not found"
	MsgNotResourceOwner       = "not authorized to modify this resource"
	MsgPermissionCheckFailed  = "error verifying permissions"
	MsgIdentityCheckFailed    = "error verifying identity"
	MsgRateLimited            = "rate limit exceeded"
)

type denialShape struct {
	status  int
	message string
}

// The three token kinds share one message.
var denialShapes = map[Kind]denialShape{
	KindNoCredential:         {http.StatusUnauthorized, MsgAuthenticationRequired},
	KindMalformedToken:       {http.StatusUnauthorized, MsgInvalidToken},
	KindInvalidSignature:     {http.StatusUnauthorized, MsgInvalidToken},
	KindExpiredToken:         {http.StatusUnauthorized, MsgInvalidToken},
	KindIdentityNotFound:     {http.StatusUnauthorized, MsgUserNotFound},
	KindRoleMismatch:         {http.StatusForbidden, MsgAccessNotAuthorized},
	KindResourceNotFound:     {http.StatusNotFound, MsgResourceNotFound},
	KindOwnershipMismatch:    {http.StatusForbidden, MsgNotResourceOwner},
	KindLookupFailure:        {http.StatusInternalServerError, MsgPermissionCheckFailed},
	KindCallerOrderingDefect: {http.StatusUnauthorized, MsgAuthenticationRequired},
	KindRateLimited:          {http.StatusTooManyRequests, MsgRateLimited},
}

// Denial is the terminal outcome of a failed gate. Status and Message are
// sent to the client; Err is kept for logs only.
type Denial struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// newDenial builds a Denial with the status and message registered for kind.
func newDenial(kind Kind, cause error) *Denial {
	shape, ok := denialShapes[kind]
	if !ok {
		shape = denialShape{http.StatusInternalServerError, MsgPermissionCheckFailed}
	}
	return &Denial{
		Kind:    kind,
		Status:  shape.status,
		Message: shape.message,
		Err:     cause,
	}
}

func (d *Denial) Error() string {
	if d.Err != nil {
		return fmt.Sprintf("%s (%d): %v", d.Kind, d.Status, d.Err)
	}
	return fmt.Sprintf("%s (%d)", d.Kind, d.Status)
}

func (d *Denial) Unwrap() error {
	return d.Err
}

// AsDenial extracts a Denial from err.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// ErrorBody is the JSON body of every denial.
type ErrorBody = transport.ErrorBody

// WriteDenial writes d as a JSON error response.
func WriteDenial(w http.ResponseWriter, d *Denial) {
	transport.WriteError(w, d.Status, d.Message)
}
