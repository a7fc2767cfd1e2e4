package models

// ResponseKind discriminates the dispatch outcome. Denials and red-flag
// intercepts are ordinary outcomes, never errors.
type ResponseKind string

const (
	ResponseOK            ResponseKind = "ok"
	ResponseQuotaExceeded ResponseKind = "quota_exceeded"
	ResponseTierRequired  ResponseKind = "tier_required"
	ResponseRedFlag       ResponseKind = "red_flag"
	ResponseSOS           ResponseKind = "sos"
	ResponseHandlerError  ResponseKind = "handler_error"
)

// Response is the uniform output contract for every inbound message.
type Response struct {
	Kind            ResponseKind   `json:"kind"`
	Reply           string         `json:"reply"`
	Payload         map[string]any `json:"payload,omitempty"`
	AudioRef        string         `json:"audio_ref,omitempty"`
	IntentAttempted Intent         `json:"intent_attempted,omitempty"`
	RemainingQuota  int            `json:"remaining_quota"`
	QuotaLimit      int            `json:"quota_limit,omitempty"`
	RequiredTier    Tier           `json:"required_tier,omitempty"`
	CurrentTier     Tier           `json:"current_tier,omitempty"`
	Diagnostic      string         `json:"diagnostic,omitempty"`
}
