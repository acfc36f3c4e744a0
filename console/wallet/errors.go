package wallet

import (
	"errors"
	"strings"
)

// walletRejectionCode is the provider error code for an explicit user
// cancellation in the signing prompt.
const walletRejectionCode = 4001

const (
	msgRejected            = "Transaction rejected in wallet"
	msgSlashed             = "Operation blocked: the operator is currently slashed"
	msgBelowMinimum        = "Amount is below the network minimum"
	msgOverCapacity        = "Sponsorship is already at full capacity"
	msgNoWallet            = "No wallet configured, running in read-only mode"
	msgNothingStaked       = "You have nothing staked with this operator"
	msgInvalidAmount       = "Enter a positive amount"
	msgInsufficientBalance = "Amount exceeds your token balance"
	msgGenericFailure      = "Transaction failed, please try again"
	revertReasonPrefix     = "execution reverted"
)

// codedError matches provider errors carrying a numeric code, which is how
// user rejections arrive.
type codedError interface {
	Error() string
	ErrorCode() int
}

// FriendlyMessage maps a transaction failure to the message shown in the
// confirmation modal. Local validation sentinels and known revert substrings
// get targeted text, unmatched reasons show the raw reason in its original
// casing, anything else falls back to a generic notice.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded codedError
	if errors.As(err, &coded) && coded.ErrorCode() == walletRejectionCode {
		return msgRejected
	}

	switch {
	case errors.Is(err, ErrNoWallet):
		return msgNoWallet
	case errors.Is(err, ErrNothingStaked):
		return msgNothingStaked
	case errors.Is(err, ErrBelowMinimum):
		return msgBelowMinimum
	case errors.Is(err, ErrInvalidAmount):
		return msgInvalidAmount
	case errors.Is(err, ErrInsufficientBalance):
		return msgInsufficientBalance
	}

	reason := revertReason(err.Error())
	lowered := strings.ToLower(reason)

	switch {
	case reason == "":
		return msgGenericFailure
	case strings.Contains(lowered, "slash"):
		return msgSlashed
	case strings.Contains(lowered, "minimum"):
		return msgBelowMinimum
	case strings.Contains(lowered, "capacity"):
		return msgOverCapacity
	default:
		return reason
	}
}

// revertReason extracts the free-text reason from a revert error string,
// empty when the failure carried no reason at all. The reason keeps its
// original casing, only the prefix match is case insensitive.
func revertReason(message string) string {
	idx := strings.Index(strings.ToLower(message), revertReasonPrefix)
	if idx < 0 {
		return ""
	}

	reason := message[idx+len(revertReasonPrefix):]
	reason = strings.TrimLeft(reason, ": ")

	return strings.TrimSpace(reason)
}
