package orchestrator

import "errors"

// ErrNoDomainConfigured is returned by domain resolution when the persona
// store holds no records. An arbitrary default is never invented.
var ErrNoDomainConfigured = errors.New("orchestrator: no domain configured")

// ErrInvalidConfig is returned when the orchestrator is constructed with an
// incomplete or inconsistent configuration. Configuration failures are fatal
// and surface at startup, never per turn.
var ErrInvalidConfig = errors.New("orchestrator: invalid configuration")

// ErrMissingPlaceholder is returned when a prompt template does not contain
// exactly one context placeholder token.
var ErrMissingPlaceholder = errors.New("orchestrator: template must contain exactly one context placeholder")
