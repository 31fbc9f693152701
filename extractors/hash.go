package extractors

import (
	"encoding/hex"
	"strings"
)

// Outcome says what a Type 3 message produced.
type Outcome int

const (
	// OutcomeHash means a crackable hash line was assembled.
	OutcomeHash Outcome = iota
	// OutcomeNoChallenge means no server challenge was pending, so no hash
	// can be built for this authentication.
	OutcomeNoChallenge
	// OutcomeNullSession means the NTLM response length is zero (anonymous
	// session), so there is nothing to crack.
	OutcomeNullSession
)

// Assembler pairs the most recently seen Type 2 server challenge with the
// next Type 3 message. At most one challenge is pending at a time; each
// Type 3 consumes it, whether or not a hash comes out.
type Assembler struct {
	challenge []byte
}

// SetChallenge records the server challenge from a Type 2 message,
// replacing any prior pending one. A client answers the challenge it saw
// last, so only the most recent Type 2 before a Type 3 matters.
func (a *Assembler) SetChallenge(challenge []byte) {
	a.challenge = challenge
}

// HasChallenge reports whether a Type 2 challenge is pending.
func (a *Assembler) HasChallenge() bool {
	return a.challenge != nil
}

// Authenticate consumes the pending challenge against a decoded Type 3
// message. When the outcome is OutcomeHash, hash holds one line in the
// DOMAIN\USERNAME::WORKSTATION:CHALLENGE:PROOF:RESPONSE format (the domain
// segment is dropped when the domain field is empty).
func (a *Assembler) Authenticate(msg *AuthMessage) (hash string, outcome Outcome) {
	challenge := a.challenge
	a.challenge = nil

	if challenge == nil {
		return "", OutcomeNoChallenge
	}
	if msg.NTLM.Length == 0 {
		return "", OutcomeNullSession
	}

	var sb strings.Builder
	if msg.Domain.Length > 0 {
		sb.WriteString(msg.Domain.Text())
		sb.WriteString(`\`)
	}
	sb.WriteString(msg.Username.Text())
	sb.WriteString("::")
	sb.WriteString(msg.Workstation.Text())
	sb.WriteString(":")
	sb.WriteString(hex.EncodeToString(challenge))
	sb.WriteString(":")
	sb.WriteString(hex.EncodeToString(msg.NTProof))
	sb.WriteString(":")
	sb.WriteString(hex.EncodeToString(msg.NTLMv2Response))

	return sb.String(), OutcomeHash
}
