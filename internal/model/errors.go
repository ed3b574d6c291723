package model

import "fmt"

// CaptureError reports a failure of the capture collaborator.
// It aborts the current round only.
type CaptureError struct {
	Iface string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture on %q failed: %v", e.Iface, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// FeatureMismatchError reports drift between the aggregator output and the
// feature schema expected by the classifier. It indicates a deployment
// misconfiguration rather than a transient fault.
type FeatureMismatchError struct {
	Feature string
	Reason  string
}

func (e *FeatureMismatchError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("feature mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("feature mismatch on %q: %s", e.Feature, e.Reason)
}

// ScoringError reports that the classifier rejected its input.
type ScoringError struct {
	Flow FlowKey
	Err  error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring flow %s failed: %v", e.Flow, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// DeliveryError reports that an alert could not be handed to the sink.
type DeliveryError struct {
	Flow FlowKey
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering alert for %s failed: %v", e.Flow, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// MitigationError reports a failure of the optional mitigation side effect.
// It is always logged and never propagated.
type MitigationError struct {
	Source string
	Err    error
}

func (e *MitigationError) Error() string {
	return fmt.Sprintf("mitigation for %s failed: %v", e.Source, e.Err)
}

func (e *MitigationError) Unwrap() error { return e.Err }
